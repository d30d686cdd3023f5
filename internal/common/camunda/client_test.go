package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"design-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &RetryConfig{MaxRetries: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   string
	}{
		{"first try", []error{nil}, 1, ""},
		{"transient then success", []error{errors.New("dial tcp: connection refused"), nil}, 2, ""},
		{"permanent error stops", []error{errors.New("password authentication failed")}, 1, "password authentication failed"},
		{
			"gives up after max retries",
			[]error{
				errors.New("i/o timeout"), errors.New("i/o timeout"),
				errors.New("i/o timeout"), errors.New("i/o timeout"),
			},
			4, "op failed: i/o timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastRetry, logger.NewTestLogger(t), "op", func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := Retry(ctx, rc, logger.NewNoOpLogger(), "op", func(context.Context) error {
		calls++
		cancel()
		return errors.New("service unavailable")
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	for msg, want := range map[string]bool{
		"dial tcp 127.0.0.1:26500: connect: connection refused": true,
		"rpc error: code = Unavailable":                          true,
		"context deadline exceeded":                              true,
		"unexpected EOF":                                         true,
		"pq: password authentication failed":                     false,
		"invalid gateway address":                                false,
	} {
		assert.Equal(t, want, IsRetryable(errors.New(msg)), msg)
	}
}
