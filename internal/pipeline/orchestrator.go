// Package pipeline runs a prompt through normalization, retrieval, planning,
// synthesis, repair, quality gating and rendering, with a deterministic
// fallback when any stage fails.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/metrics"
	"design-workers/internal/common/observability"
	"design-workers/internal/common/validation"
	"design-workers/internal/models"
	"design-workers/internal/planner"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	stageNormalize  = "normalize"
	stageRetrieve   = "retrieve"
	stagePlan       = "plan"
	stageSynthesize = "synthesize"
	stageRepair     = "repair"
	stageQuality    = "quality_gate"
	stageRender     = "render"

	retrievalWarning = "Grounding retrieval unavailable; generated without grounding"
)

// Retriever supplies grounding for a prompt.
type Retriever interface {
	Retrieve(ctx context.Context, prompt, userID string) (*models.GroundingData, error)
}

type Config struct {
	MaxRetries          int
	FallbackToRuleBased bool
	DefaultSize         models.Size
	DefaultMaxElements  int
	MaxComponents       int
	Timeout             time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:          2,
		FallbackToRuleBased: true,
		DefaultSize:         models.Size{Width: 400, Height: 400},
		DefaultMaxElements:  12,
		MaxComponents:       50,
		Timeout:             30 * time.Second,
	}
}

// Deps are the collaborators. LLM and Retriever may be nil: normalization
// then goes straight to the rule-based path and grounding is empty.
type Deps struct {
	LLM       IntentNormalizer
	Retriever Retriever
	Logger    logger.Logger
	Obs       *observability.Observability
	Now       func() time.Time
}

type Orchestrator struct {
	config    Config
	llm       IntentNormalizer
	rules     *RuleNormalizer
	retriever Retriever
	synth     *Synthesizer
	gate      *QualityGate
	sanitizer *Sanitizer
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func New(deps Deps, cfg Config) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if !validSize(cfg.DefaultSize) {
		cfg.DefaultSize = models.Size{Width: planner.DefaultWidth, Height: planner.DefaultHeight}
	}
	return &Orchestrator{
		config:    cfg,
		llm:       deps.LLM,
		rules:     NewRuleNormalizer(),
		retriever: deps.Retriever,
		synth:     NewSynthesizer(),
		gate:      NewQualityGate(cfg.MaxComponents),
		sanitizer: NewSanitizer(),
		obs:       deps.Obs,
		logger:    log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:       now,
	}
}

// Generate runs the full pipeline. With fallback enabled (the default) it
// always returns a response; otherwise stage errors are returned unchanged.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	start := o.now()
	requestID := uuid.New().String()
	log := o.logger.WithFields(map[string]interface{}{"requestId": requestID})

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	ctx, span := o.obs.StartSpan(ctx, "pipeline.generate", attribute.String("request.id", requestID))
	defer span.End()

	resp, err := o.run(ctx, req, requestID, start, log)
	if err == nil {
		metrics.PipelineRuns.WithLabelValues("success").Inc()
		return resp, nil
	}

	span.RecordError(err)
	fallback := o.config.FallbackToRuleBased
	if req.FallbackToRuleBased != nil {
		fallback = *req.FallbackToRuleBased
	}
	if !fallback {
		span.SetStatus(codes.Error, err.Error())
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		log.Error("pipeline failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	log.Warn("pipeline failed, using fallback", map[string]interface{}{"error": err.Error()})
	metrics.PipelineRuns.WithLabelValues("fallback").Inc()
	return Fallback(req, requestID, o.now(), o.now().Sub(start)), nil
}

func (o *Orchestrator) run(ctx context.Context, req models.GenerateRequest, requestID string, start time.Time, log logger.Logger) (resp *models.GenerateResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewSynthesisFailedError(fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	var warnings []string

	var normalized *NormalizeResult
	_ = o.stage(ctx, stageNormalize, func(ctx context.Context) error {
		normalized = o.normalize(ctx, req, log)
		return nil
	})
	intent := normalized.Intent

	grounding := &models.GroundingData{}
	if o.retriever != nil {
		rerr := o.stage(ctx, stageRetrieve, func(ctx context.Context) error {
			g, err := o.retriever.Retrieve(ctx, req.Prompt, req.UserID)
			if err != nil {
				return err
			}
			if g != nil {
				grounding = g
			}
			return nil
		})
		if rerr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("retrieval failed, continuing without grounding", map[string]interface{}{"error": rerr.Error()})
			warnings = append(warnings, retrievalWarning)
			grounding = &models.GroundingData{}
		}
	}

	var plan *models.CompositionPlan
	if err := o.stage(ctx, stagePlan, func(ctx context.Context) error {
		size := req.Size
		if size == nil {
			def := o.config.DefaultSize
			size = &def
		}
		p, err := planner.New(planner.SourceFor(req.Seed)).Plan(intent, grounding, planner.PlanContext{TargetSize: size})
		if err != nil {
			return apperrors.NewPlanSchemaInvalidError(err.Error())
		}
		if res := validation.ValidatePlan(p); !res.Valid {
			return apperrors.NewPlanSchemaInvalidError(res.String())
		}
		plan = p
		return nil
	}); err != nil {
		return nil, err
	}

	var doc *models.AISVGDocument
	if err := o.stage(ctx, stageSynthesize, func(ctx context.Context) error {
		d, err := o.synth.Synthesize(plan, grounding, intent)
		if err != nil {
			return apperrors.NewSynthesisFailedError(err)
		}
		doc = d
		return nil
	}); err != nil {
		return nil, err
	}

	maxRetries := o.config.MaxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}
	var (
		iterations int
		remaining  []Issue
	)
	_ = o.stage(ctx, stageRepair, func(ctx context.Context) error {
		iterations, remaining = RepairLoop(doc, RulesFor(intent), maxRetries)
		return nil
	})
	metrics.RepairIterations.Observe(float64(iterations))
	if len(remaining) > 0 {
		log.Debug("repair left issues", map[string]interface{}{"issues": issueStrings(remaining)})
	}

	if err := o.stage(ctx, stageQuality, func(ctx context.Context) error {
		return o.gate.Check(doc, remaining)
	}); err != nil {
		return nil, err
	}

	var svg string
	var clean *models.AISVGDocument
	if err := o.stage(ctx, stageRender, func(ctx context.Context) error {
		var removed int
		SortByDrawOrder(doc)
		clean, removed = o.sanitizer.Sanitize(doc)
		if removed > 0 {
			log.Warn("sanitizer removed content", map[string]interface{}{"removed": removed})
		}
		s, err := Render(clean)
		if err != nil {
			return apperrors.NewRenderFailedError(err)
		}
		svg = s
		return nil
	}); err != nil {
		return nil, err
	}
	metrics.ComponentsRendered.Observe(float64(len(clean.Components)))

	clean.Metadata = models.DocumentMetadata{
		RequestID:        requestID,
		Model:            normalized.Model,
		Prompt:           req.Prompt,
		Seed:             req.Seed,
		Arrangement:      plan.Layout.Arrangement,
		ComponentCount:   len(clean.Components),
		RepairIterations: iterations,
		RemainingIssues:  issueStrings(remaining),
		GeneratedAt:      o.now().UTC().Format(time.RFC3339),
		DurationMs:       o.now().Sub(start).Milliseconds(),
	}
	if warnings == nil {
		warnings = []string{}
	}

	log.Info("design generated", map[string]interface{}{
		"model":      clean.Metadata.Model,
		"components": clean.Metadata.ComponentCount,
		"repairs":    iterations,
		"durationMs": clean.Metadata.DurationMs,
	})
	return &models.GenerateResponse{
		SVG:      svg,
		Metadata: clean.Metadata,
		Layers:   clean.Components,
		Warnings: warnings,
	}, nil
}

// normalize tries the LLM and falls back to the keyword rules on any error.
// The result always carries element limits from config.
func (o *Orchestrator) normalize(ctx context.Context, req models.GenerateRequest, log logger.Logger) *NormalizeResult {
	nreq := NormalizeRequest{Prompt: req.Prompt, Model: req.Model, Palette: req.Palette}

	var result *NormalizeResult
	if o.llm != nil && !strings.EqualFold(strings.TrimSpace(req.Model), RuleBasedModel) {
		r, err := o.llm.Normalize(ctx, nreq)
		if err != nil {
			metrics.NormalizerFallbacks.Inc()
			log.Warn("LLM normalization failed, using rule-based normalizer", map[string]interface{}{"error": err.Error()})
		} else {
			result = r
		}
	}
	if result == nil {
		result, _ = o.rules.Normalize(ctx, nreq)
	}

	c := &result.Intent.Constraints
	if c.MaxElements <= 0 {
		c.MaxElements = o.config.DefaultMaxElements
	}
	if o.config.MaxComponents > 0 && (c.MaxElements <= 0 || c.MaxElements > o.config.MaxComponents) {
		c.MaxElements = o.config.MaxComponents
	}
	return result
}

// stage runs fn inside a span and records its duration under the stage
// label.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := o.obs.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	metrics.PipelineStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	o.obs.RecordStage(ctx, name, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
