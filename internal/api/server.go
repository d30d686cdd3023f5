// Package api exposes the design pipeline, grounding retrieval and the
// knowledge store over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"design-workers/internal/common/logger"
	"design-workers/internal/knowledge"
	"design-workers/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Generator runs the prompt-to-SVG pipeline.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
}

// GroundingRetriever returns the grounding bundle for a prompt.
type GroundingRetriever interface {
	Retrieve(ctx context.Context, prompt, userID string) (*models.GroundingData, error)
}

// KnowledgeService is the write side of the knowledge store.
type KnowledgeService interface {
	Create(ctx context.Context, obj models.KnowledgeObject) (*models.KnowledgeObject, error)
	Get(ctx context.Context, id string) (*models.KnowledgeObject, error)
	Update(ctx context.Context, id string, ch knowledge.Changes) (*models.KnowledgeObject, error)
	Promote(ctx context.Context, id string) (*models.KnowledgeObject, error)
	Deprecate(ctx context.Context, id, reason string) (*models.KnowledgeObject, error)
	Preferences(ctx context.Context, userID string) (models.PreferenceWeights, error)
	SetPreference(ctx context.Context, userID, facet, value string, weight float64) error
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

// Deps are the services behind the routes. Retriever and Knowledge may be
// nil, in which case their routes answer 503.
type Deps struct {
	Generator Generator
	Retriever GroundingRetriever
	Knowledge KnowledgeService
	Checks    map[string]Check
	Logger    logger.Logger
	Now       func() time.Time
}

type server struct {
	generator Generator
	retriever GroundingRetriever
	knowledge KnowledgeService
	checks    map[string]Check
	logger    logger.Logger
	now       func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &server{
		generator: deps.Generator,
		retriever: deps.Retriever,
		knowledge: deps.Knowledge,
		checks:    deps.Checks,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
		now:       now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/grounding", s.handleGrounding)

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/", s.handleCreateKnowledge)
			r.Get("/{id}", s.handleGetKnowledge)
			r.Patch("/{id}", s.handleUpdateKnowledge)
			r.Post("/{id}/promote", s.handlePromoteKnowledge)
			r.Post("/{id}/deprecate", s.handleDeprecateKnowledge)
		})

		r.Get("/preferences/{userId}", s.handleGetPreferences)
		r.Put("/preferences/{userId}", s.handlePutPreferences)
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"requestId":   middleware.GetReqID(r.Context()),
		})
	})
}
