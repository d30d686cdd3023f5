package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/observability"
	"design-workers/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type fakeNormalizer struct {
	intent models.DesignIntent
	model  string
	err    error
	calls  int
}

func (f *fakeNormalizer) Normalize(_ context.Context, _ NormalizeRequest) (*NormalizeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &NormalizeResult{Intent: f.intent, Model: f.model}, nil
}

type fakeRetriever struct {
	mu        sync.Mutex
	grounding *models.GroundingData
	err       error
	panicMsg  string
	prompts   []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, prompt, _ string) (*models.GroundingData, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.grounding, f.err
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }

func newOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logger.NewTestLogger(t)
	}
	deps.Now = func() time.Time { return fixedNow }
	return New(deps, DefaultConfig())
}

func TestGenerate_RuleBasedSuccess(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt: "three red circles in a grid",
		Seed:   int64Ptr(42),
	})
	require.NoError(t, err)

	assert.Equal(t, RuleBasedModel, resp.Metadata.Model)
	assert.Equal(t, models.ArrangementGrid, resp.Metadata.Arrangement)
	assert.Equal(t, 3, resp.Metadata.ComponentCount)
	assert.Equal(t, int64(42), *resp.Metadata.Seed)
	assert.Equal(t, "2026-03-14T09:26:53Z", resp.Metadata.GeneratedAt)
	assert.NotEmpty(t, resp.Metadata.RequestID)
	assert.NotNil(t, resp.Warnings)
	assert.Empty(t, resp.Warnings)
	require.Len(t, resp.Layers, 3)
	for _, l := range resp.Layers {
		assert.Equal(t, "circle", l.Element)
		assert.Equal(t, "circle", l.Metadata.Motif)
		assert.Equal(t, "#EF4444", l.Attributes["fill"])
	}
	assert.True(t, strings.HasPrefix(resp.SVG, `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="400" viewBox="0 0 400 400">`))
	assert.Equal(t, 3, strings.Count(resp.SVG, "<circle "))
}

func TestGenerate_DeterministicForSeed(t *testing.T) {
	o := newOrchestrator(t, Deps{Logger: logger.NewNoOpLogger()})
	req := models.GenerateRequest{
		Prompt: "scattered organic leaves and stars, warm mood",
		Seed:   int64Ptr(1234),
		Size:   &models.Size{Width: 640, Height: 480},
	}

	first, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := o.Generate(context.Background(), req)
		require.NoError(t, err)
		if diff := cmp.Diff(first.SVG, again.SVG); diff != "" {
			t.Fatalf("svg differs between runs (-first +again):\n%s", diff)
		}
		if diff := cmp.Diff(first.Layers, again.Layers); diff != "" {
			t.Fatalf("layers differ between runs (-first +again):\n%s", diff)
		}
	}

	other, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt: req.Prompt, Seed: int64Ptr(99), Size: req.Size,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.SVG, other.SVG)
}

func TestGenerate_StrokeOnlyPrompt(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt: "an outline of five circles, mandala",
		Seed:   int64Ptr(7),
	})
	require.NoError(t, err)
	require.Len(t, resp.Layers, 5)
	for _, l := range resp.Layers {
		assert.Equal(t, "none", l.Attributes["fill"])
		w, ok := l.Attributes["stroke-width"].(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, w, 1.0)
	}
	assert.Empty(t, resp.Metadata.RemainingIssues)
}

func TestGenerate_LLMFailureFallsBackToRules(t *testing.T) {
	llm := &fakeNormalizer{err: apperrors.NewNormalizationFailedError(errors.New("provider down"))}
	o := newOrchestrator(t, Deps{LLM: llm})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "two squares", Seed: int64Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, RuleBasedModel, resp.Metadata.Model)
	assert.Empty(t, resp.Warnings)
	assert.Len(t, resp.Layers, 2)
}

func TestGenerate_UsesLLMIntent(t *testing.T) {
	llm := &fakeNormalizer{
		model: "gpt-4o-mini",
		intent: models.DesignIntent{
			Style:       models.StyleSpec{Palette: []string{"#112233"}, Density: models.DensitySparse},
			Motifs:      []string{"triangle"},
			Layout:      models.LayoutSpec{Arrangement: models.ArrangementCentered, Counts: map[string]int{"triangle": 20}},
			Constraints: models.Constraints{MaxElements: 4, RequiredMotifs: []string{"star"}},
		},
	}
	o := newOrchestrator(t, Deps{LLM: llm})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "triangles", Seed: int64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", resp.Metadata.Model)
	// Required motifs take every slot, and the count is clamped to the limit.
	require.Len(t, resp.Layers, 4)
	for _, l := range resp.Layers {
		assert.Equal(t, "star", l.Metadata.Motif)
		assert.Equal(t, "polygon", l.Element)
	}
}

func TestGenerate_RuleBasedModelSkipsLLM(t *testing.T) {
	llm := &fakeNormalizer{model: "gpt-4o-mini"}
	o := newOrchestrator(t, Deps{LLM: llm})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "a circle", Model: "rule-based"})
	require.NoError(t, err)
	assert.Zero(t, llm.calls)
	assert.Equal(t, RuleBasedModel, resp.Metadata.Model)
}

func TestGenerate_RetrievalFailureDegrades(t *testing.T) {
	retriever := &fakeRetriever{err: apperrors.NewRetrievalFailedError(errors.New("db down"))}
	o := newOrchestrator(t, Deps{Retriever: retriever})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "a circle", Seed: int64Ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, RuleBasedModel, resp.Metadata.Model)
	assert.Equal(t, []string{retrievalWarning}, resp.Warnings)
	assert.Equal(t, []string{"a circle"}, retriever.prompts)
}

func TestGenerate_ReusesGrounding(t *testing.T) {
	retriever := &fakeRetriever{grounding: &models.GroundingData{
		Motifs: []models.MotifBody{{Name: "leaf", Primitive: "path"}},
		Components: []models.ReusableComponent{
			{ID: "leaf-1", Motif: "leaf", Type: "path", Element: "path", Attributes: map[string]interface{}{"d": "M 0 0 Q 6 -12 0 -24 Q -6 -12 0 0 Z"}},
		},
	}}
	o := newOrchestrator(t, Deps{Retriever: retriever})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "something calm", Seed: int64Ptr(11)})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Layers)
	for _, l := range resp.Layers {
		assert.True(t, l.Metadata.Reused)
		assert.Equal(t, "M 0 0 Q 6 -12 0 -24 Q -6 -12 0 0 Z", l.Attributes["d"])
	}
}

func TestGenerate_FallbackOnEmptyPromptAndZeroArea(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt: "",
		Size:   &models.Size{Width: 0, Height: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, resp.Metadata.Model)
	assert.Equal(t, []string{FallbackWarning}, resp.Warnings)
	require.Len(t, resp.Layers, 2)
	assert.Equal(t, "circle", resp.Layers[0].Element)
	assert.Equal(t, "text", resp.Layers[1].Element)
	assert.Contains(t, resp.SVG, `width="400" height="400"`)
	assert.Contains(t, resp.SVG, `<circle id="fallback-circle"`)
}

func TestGenerate_FallbackEscapesPrompt(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	prompt := `<script>alert("x")</script> & friends`
	resp, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt: prompt,
		Size:   &models.Size{Width: -1, Height: 300},
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, resp.Metadata.Model)
	assert.NotContains(t, resp.SVG, "<script>")
	assert.Contains(t, resp.SVG, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; friends")
	assert.Equal(t, prompt, resp.Layers[1].Text)
}

func TestGenerate_FallbackDisabledReturnsError(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt:              "",
		Size:                &models.Size{},
		FallbackToRuleBased: boolPtr(false),
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePlanSchemaInvalid))

	var se *apperrors.StandardError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Details, "width")
}

func TestGenerate_QualityGateFailure(t *testing.T) {
	llm := &fakeNormalizer{
		model: "fake",
		intent: models.DesignIntent{
			Style:  models.StyleSpec{Palette: []string{"none"}},
			Motifs: []string{"circle"},
			Layout: models.LayoutSpec{Arrangement: models.ArrangementCentered},
		},
	}
	o := newOrchestrator(t, Deps{LLM: llm})

	_, err := o.Generate(context.Background(), models.GenerateRequest{
		Prompt:              "invisible circles",
		Seed:                int64Ptr(2),
		FallbackToRuleBased: boolPtr(false),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQAFailed))
	assert.Contains(t, err.Error(), "QA failed: component-")
	assert.Contains(t, err.Error(), "has neither fill nor stroke")

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "invisible circles", Seed: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, resp.Metadata.Model)
}

func TestGenerate_PanicBecomesFallback(t *testing.T) {
	o := newOrchestrator(t, Deps{Retriever: &fakeRetriever{panicMsg: "boom"}})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "a circle"})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, resp.Metadata.Model)

	_, err = o.Generate(context.Background(), models.GenerateRequest{Prompt: "a circle", FallbackToRuleBased: boolPtr(false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline panic: boom")
}

func TestGenerate_RequestMaxRetries(t *testing.T) {
	// One planned slot for two required motifs leaves "moon" to the repair loop.
	llm := &fakeNormalizer{
		model: "fake",
		intent: models.DesignIntent{
			Motifs:      []string{"circle"},
			Layout:      models.LayoutSpec{Arrangement: models.ArrangementCentered, Counts: map[string]int{"circle": 1}},
			Constraints: models.Constraints{RequiredMotifs: []string{"circle", "moon"}},
		},
	}
	o := newOrchestrator(t, Deps{LLM: llm})

	resp, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "moon", Seed: int64Ptr(8), MaxRetries: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Metadata.RepairIterations)
	assert.Equal(t, []string{"missing_required_motif: moon"}, resp.Metadata.RemainingIssues)
	assert.Len(t, resp.Layers, 1)

	resp, err = o.Generate(context.Background(), models.GenerateRequest{Prompt: "moon", Seed: int64Ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Metadata.RepairIterations)
	assert.Empty(t, resp.Metadata.RemainingIssues)
	require.Len(t, resp.Layers, 2)
	assert.Equal(t, "required-moon", resp.Layers[1].ID)
}

func TestGenerate_StageSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := observability.New("pipeline-test", sdktrace.WithSpanProcessor(recorder))
	defer obs.Shutdown()

	o := newOrchestrator(t, Deps{Obs: obs, Retriever: &fakeRetriever{grounding: &models.GroundingData{}}})
	_, err := o.Generate(context.Background(), models.GenerateRequest{Prompt: "a circle", Seed: int64Ptr(1)})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"pipeline.normalize",
		"pipeline.retrieve",
		"pipeline.plan",
		"pipeline.synthesize",
		"pipeline.repair",
		"pipeline.quality_gate",
		"pipeline.render",
		"pipeline.generate",
	}, names)
}
