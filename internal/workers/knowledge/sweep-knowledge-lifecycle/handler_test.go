// internal/workers/knowledge/sweep-knowledge-lifecycle/handler_test.go
package sweepknowledgelifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/knowledge"
	"design-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staleStore struct {
	stale      []models.KnowledgeObject
	listErr    error
	failIDs    map[string]bool
	deprecated []string
}

func (s *staleStore) ListStale(_ context.Context, _ time.Time, _ float64) ([]models.KnowledgeObject, error) {
	return s.stale, s.listErr
}

func (s *staleStore) Deprecate(_ context.Context, id, _ string) (*models.KnowledgeObject, error) {
	if s.failIDs[id] {
		return nil, errors.New("row locked")
	}
	s.deprecated = append(s.deprecated, id)
	return &models.KnowledgeObject{ID: id, Status: models.StatusDeprecated}, nil
}

var sweptAt = time.Date(2026, 7, 4, 3, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, cfg *Config, store *staleStore) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	lc := knowledge.NewLifecycle(store, 120*24*time.Hour, 0.3, log)
	h := NewHandler(cfg, lc, log)
	h.now = func() time.Time { return sweptAt }
	return h
}

func TestHandler_Execute(t *testing.T) {
	stale := []models.KnowledgeObject{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	tests := []struct {
		name     string
		cfg      *Config
		store    *staleStore
		wantCode apperrors.ErrorCode
		want     *Output
	}{
		{
			name:  "deprecates every stale object",
			cfg:   LoadConfig(),
			store: &staleStore{stale: stale},
			want:  &Output{Checked: 3, Deprecated: []string{"a", "b", "c"}, SweptAt: "2026-07-04T03:00:00Z"},
		},
		{
			name:  "nothing to do",
			cfg:   LoadConfig(),
			store: &staleStore{},
			want:  &Output{Checked: 0, Deprecated: []string{}, SweptAt: "2026-07-04T03:00:00Z"},
		},
		{
			name:  "partial failure is reported",
			cfg:   LoadConfig(),
			store: &staleStore{stale: stale, failIDs: map[string]bool{"b": true}},
			want:  &Output{Checked: 3, Deprecated: []string{"a", "c"}, Failed: []string{"b"}, SweptAt: "2026-07-04T03:00:00Z"},
		},
		{
			name:     "partial failure fails the job when configured",
			cfg:      &Config{Timeout: time.Second, FailOnPartial: true},
			store:    &staleStore{stale: stale, failIDs: map[string]bool{"b": true}},
			wantCode: apperrors.ErrCodeQueryExecutionFailed,
		},
		{
			name:     "listing failure",
			cfg:      LoadConfig(),
			store:    &staleStore{listErr: errors.New("connection refused")},
			wantCode: apperrors.ErrCodeQueryExecutionFailed,
		},
		{
			name:     "standard errors pass through",
			cfg:      LoadConfig(),
			store:    &staleStore{listErr: apperrors.NewDatabaseConnectionFailedError(errors.New("pool exhausted"))},
			wantCode: apperrors.ErrCodeDatabaseConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.cfg, tt.store)
			out, err := h.Execute(context.Background(), &Input{})
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantCode), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHandler_ListingFailureIsRetryable(t *testing.T) {
	h := newTestHandler(t, LoadConfig(), &staleStore{listErr: errors.New("connection refused")})
	_, err := h.Execute(context.Background(), &Input{})
	se, ok := apperrors.AsStandardError(err)
	require.True(t, ok)

	bpmn := apperrors.ConvertToBPMNError(se)
	assert.True(t, bpmn.Retryable)
	assert.Equal(t, 3, bpmn.Retries)
}
