// internal/workers/design/generate-svg/handler_test.go
package generatesvg

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"
	"design-workers/internal/pipeline"
	"design-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	resp *models.GenerateResponse
	err  error
	got  models.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	m.got = req
	return m.resp, m.err
}

func int64Ptr(v int64) *int64 { return &v }

func createTestHandler(t *testing.T, gen Generator, validator InputValidator) *Handler {
	t.Helper()
	return NewHandler(LoadConfig(), gen, validator, logger.NewTestLogger(t))
}

func TestHandler_Execute_Success(t *testing.T) {
	gen := &mockGenerator{resp: &models.GenerateResponse{
		SVG:      "<svg/>",
		Metadata: models.DocumentMetadata{RequestID: "req-1", Model: pipeline.RuleBasedModel, ComponentCount: 1},
		Layers:   []models.SVGComponent{{ID: "component-1", Element: "circle"}},
		Warnings: []string{},
	}}
	h := createTestHandler(t, gen, nil)

	out, err := h.Execute(context.Background(), &Input{
		Prompt:  "a red circle",
		Seed:    int64Ptr(9),
		Palette: []string{"#FF0000"},
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "<svg/>", out.SVG)
	assert.Equal(t, "req-1", out.Metadata.RequestID)
	assert.Len(t, out.Layers, 1)
	assert.False(t, out.UsedFallback)

	assert.Equal(t, "a red circle", gen.got.Prompt)
	assert.Equal(t, int64(9), *gen.got.Seed)
	assert.Equal(t, []string{"#FF0000"}, gen.got.Palette)
	assert.Equal(t, "user-1", gen.got.UserID)
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := createTestHandler(t, &mockGenerator{err: apperrors.NewQAFailedError("document has no components")}, nil)

	_, err := h.Execute(context.Background(), &Input{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQAFailed))

	_, err = h.Execute(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestHandler_Execute_WithPipeline(t *testing.T) {
	orch := pipeline.New(pipeline.Deps{Logger: logger.NewNoOpLogger()}, pipeline.DefaultConfig())
	h := createTestHandler(t, orch, nil)

	out, err := h.Execute(context.Background(), &Input{Prompt: "four stars in a grid", Seed: int64Ptr(1)})
	require.NoError(t, err)
	assert.False(t, out.UsedFallback)
	assert.Equal(t, 4, out.Metadata.ComponentCount)
	assert.True(t, strings.HasPrefix(out.SVG, "<svg "))

	out, err = h.Execute(context.Background(), &Input{Prompt: "", Size: &models.Size{}})
	require.NoError(t, err)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, []string{pipeline.FallbackWarning}, out.Warnings)
}

type rejectAll struct{}

func (rejectAll) ValidateInput(taskType, _ string) error {
	return errors.New("prompt: prompt is required")
}

func TestHandler_ParseInput(t *testing.T) {
	reg, err := registry.LoadRegistry("../../../../configs/activity-registry.json")
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator InputValidator
		variables string
		wantErr   string
		check     func(t *testing.T, in *Input)
	}{
		{
			name:      "valid variables",
			validator: reg,
			variables: `{"prompt":"leaves","size":{"width":300,"height":150},"maxRetries":1,"processId":"p-1"}`,
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "leaves", in.Prompt)
				assert.Equal(t, models.Size{Width: 300, Height: 150}, *in.Size)
				assert.Equal(t, 1, *in.MaxRetries)
			},
		},
		{
			name:      "schema violation",
			validator: reg,
			variables: `{"prompt":"x","seed":"abc"}`,
			wantErr:   "seed",
		},
		{
			name:      "validator rejects",
			validator: rejectAll{},
			variables: `{"prompt":"x"}`,
			wantErr:   "prompt is required",
		},
		{
			name:      "malformed json without validator",
			variables: `{"prompt":`,
			wantErr:   "parse input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &mockGenerator{}, tt.validator)
			in, err := h.parseInput(tt.variables)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}
