package retrieval

import (
	"context"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// KnowledgeSource is the read side of the knowledge store used for ranking.
type KnowledgeSource interface {
	ListActiveWithEmbeddings(ctx context.Context, minQuality float64) ([]models.KnowledgeObject, error)
	ListActive(ctx context.Context, minQuality float64, limit int) ([]models.KnowledgeObject, error)
	Preferences(ctx context.Context, userID string) (models.PreferenceWeights, error)
}

// TagSearcher finds active objects whose tags match any of terms.
type TagSearcher interface {
	SearchByTags(ctx context.Context, terms []string, minQuality float64, limit int) ([]models.KnowledgeObject, error)
}

type Config struct {
	MinQualityScore     float64
	SimilarityThreshold float64
	CandidateLimit      int
	MotifCap            int
	GlossaryCap         int
	TokenBudget         int
	FreshnessThreshold  time.Duration
	CostPer1KTokens     float64
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		MinQualityScore:     0.3,
		SimilarityThreshold: 0.3,
		CandidateLimit:      50,
		MotifCap:            6,
		GlossaryCap:         3,
		TokenBudget:         4000,
		FreshnessThreshold:  120 * 24 * time.Hour,
		CostPer1KTokens:     0.002,
	}
}

// Deps are the collaborators of an Engine. Index, Embedder and Redis are
// optional.
type Deps struct {
	Store    KnowledgeSource
	Index    TagSearcher
	Embedder Embedder
	Redis    redis.Cmdable
	Logger   logger.Logger
	Now      func() time.Time
}

// Engine selects grounding bundles. One Engine is built at startup and shared
// by all requests.
type Engine struct {
	store    KnowledgeSource
	index    TagSearcher
	embedder Embedder
	cache    *Cache
	usage    *Usage
	cfg      Config
	logger   logger.Logger
	now      func() time.Time
}

func NewEngine(deps Deps, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.MotifCap <= 0 {
		cfg.MotifCap = def.MotifCap
	}
	if cfg.GlossaryCap <= 0 {
		cfg.GlossaryCap = def.GlossaryCap
	}
	if cfg.FreshnessThreshold <= 0 {
		cfg.FreshnessThreshold = def.FreshnessThreshold
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		store:    deps.Store,
		index:    deps.Index,
		embedder: deps.Embedder,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "retrieval"}),
		now:      now,
	}
	if deps.Redis != nil {
		e.cache = NewCache(deps.Redis)
		e.usage = NewUsage(deps.Redis, cfg.CostPer1KTokens)
	} else {
		e.usage = NewUsage(nil, cfg.CostPer1KTokens)
	}
	return e
}

// Retrieve returns the grounding bundle for prompt and user. Cache failures
// are logged and never fail the call.
func (e *Engine) Retrieve(ctx context.Context, prompt, userID string) (*models.GroundingData, error) {
	key := CacheKey(prompt, userID)

	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("grounding cache read failed", map[string]interface{}{"error": err})
		}
		if ok {
			if err := e.usage.RecordCacheHit(ctx); err != nil {
				e.logger.Warn("failed to record cache hit", map[string]interface{}{"error": err})
			}
			return cached, nil
		}
	}

	var (
		cands        []candidate
		user, global models.PreferenceWeights
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cands, err = e.candidates(gctx, prompt)
		if err != nil {
			return apperrors.NewRetrievalFailedError(err)
		}
		return nil
	})
	g.Go(func() error {
		user = e.preferences(gctx, userID)
		return nil
	})
	g.Go(func() error {
		global = e.preferences(gctx, models.GlobalPreferenceUser)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scorer := Scorer{User: user, Global: global, Threshold: e.cfg.FreshnessThreshold, Now: e.now}
	ranked := scorer.Score(cands)

	grounding, selected := e.assemble(ranked)
	tokens := Optimize(grounding, e.cfg.TokenBudget)

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, grounding, CacheTTL(tokens)); err != nil {
			e.logger.Warn("grounding cache write failed", map[string]interface{}{"error": err})
		}
	}
	if err := e.usage.RecordBundle(ctx, tokens, selected); err != nil {
		e.logger.Warn("failed to record grounding usage", map[string]interface{}{"error": err})
	}

	e.logger.Debug("grounding assembled", map[string]interface{}{
		"candidates": len(cands),
		"motifs":     len(grounding.Motifs),
		"glossary":   len(grounding.Glossary),
		"tokens":     tokens,
	})
	return grounding, nil
}

func (e *Engine) preferences(ctx context.Context, userID string) models.PreferenceWeights {
	if userID == "" {
		return models.PreferenceWeights{}
	}
	w, err := e.store.Preferences(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to load preferences", map[string]interface{}{"userId": userID, "error": err})
		return models.PreferenceWeights{}
	}
	return w
}

// assemble groups ranked objects by kind and builds the bundle. Rules never
// ship in a bundle; they are enforced at write time.
func (e *Engine) assemble(ranked []models.ScoredObject) (*models.GroundingData, []models.ScoredObject) {
	byKind := make(map[models.KnowledgeKind][]models.ScoredObject)
	for _, s := range ranked {
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}

	g := &models.GroundingData{
		Motifs:     []models.MotifBody{},
		Glossary:   []models.GlossaryBody{},
		Fewshot:    []models.FewshotBody{},
		Components: []models.ReusableComponent{},
	}
	var selected []models.ScoredObject

	if best, ok := topOne(byKind[models.KindStylePack]); ok {
		if body, ok := best.Body.(models.StylePackBody); ok {
			g.StylePack = &body
			selected = append(selected, best)
		}
	}

	for _, s := range SelectDiverse(byKind[models.KindMotif], e.cfg.MotifCap) {
		body, ok := s.Body.(models.MotifBody)
		if !ok {
			continue
		}
		g.Motifs = append(g.Motifs, body)
		for _, c := range body.Components {
			if c.Motif == "" {
				c.Motif = body.Name
			}
			g.Components = append(g.Components, c)
		}
		selected = append(selected, s)
	}

	for _, s := range SelectDiverse(byKind[models.KindGlossary], e.cfg.GlossaryCap) {
		if body, ok := s.Body.(models.GlossaryBody); ok {
			g.Glossary = append(g.Glossary, body)
			selected = append(selected, s)
		}
	}

	if best, ok := topOne(byKind[models.KindFewshot]); ok {
		if body, ok := best.Body.(models.FewshotBody); ok {
			g.Fewshot = append(g.Fewshot, body)
			selected = append(selected, best)
		}
	}

	return g, selected
}
