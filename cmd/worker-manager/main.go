// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"design-workers/internal/api"
	"design-workers/internal/common/aws"
	"design-workers/internal/common/camunda"
	"design-workers/internal/common/config"
	"design-workers/internal/common/database"
	"design-workers/internal/common/genai"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/observability"
	"design-workers/internal/knowledge"
	"design-workers/internal/models"
	"design-workers/internal/pipeline"
	"design-workers/internal/retrieval"
	"design-workers/pkg/registry"

	gs "design-workers/internal/workers/design/generate-svg"
	rg "design-workers/internal/workers/design/retrieve-grounding"
	sk "design-workers/internal/workers/knowledge/sweep-knowledge-lifecycle"
)

var startupRetry = &camunda.RetryConfig{
	MaxRetries: 15,
	BaseDelay:  2 * time.Second,
	MaxDelay:   30 * time.Second,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.LoadRegistry(cfg.App.RegistryPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = camunda.Retry(ctx, startupRetry, log, "postgres connect", func(ctx context.Context) error {
		c, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return err
		}
		pg = c
		return nil
	})
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("knowledge schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = camunda.Retry(ctx, startupRetry, log, "redis connect", func(ctx context.Context) error {
		return database.PingRedis(ctx, rdb)
	})
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional tag index) ---
	var (
		indexer knowledge.Indexer
		tags    retrieval.TagSearcher
	)
	if cfg.Database.Elasticsearch.Enabled() {
		es, err := connectElasticsearch(ctx, cfg.Database.Elasticsearch, log)
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, tag search disabled", zap.Error(err))
		} else {
			ix := knowledge.NewIndex(es, cfg.Database.Elasticsearch.Index, log)
			indexer, tags = ix, ix
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Governance events ---
	var events knowledge.EventPublisher
	if arn := cfg.Knowledge.Governance.TopicARN; arn != "" {
		pub, err := aws.NewSNSPublisher(ctx, cfg.Knowledge.Governance.Region, arn)
		if err != nil {
			zapLog.Warn("sns publisher unavailable, governance events disabled", zap.Error(err))
		} else {
			events = pub
		}
	}

	store := knowledge.NewStore(pg.DB, indexer, events, knowledge.StoreConfig{
		MaxBodyTokens:    cfg.Knowledge.MaxBodyTokens,
		MinQuality:       cfg.Retrieval.MinQualityScore,
		CanonicalPrompts: cfg.Knowledge.CanonicalPrompt,
	}, log)

	// --- Retrieval ---
	var embedder retrieval.Embedder
	if cfg.APIs.Embedding.APIKey != "" {
		client := genai.NewOpenAIClient(genai.ClientConfig{
			BaseURL:    cfg.APIs.Embedding.BaseURL,
			APIKey:     cfg.APIs.Embedding.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.Embedding.Timeout),
			MaxRetries: 1,
		})
		embedder = retrieval.NewOpenAIEmbedder(client, cfg.APIs.Embedding.Model)
	}

	engine := retrieval.NewEngine(retrieval.Deps{
		Store:    store,
		Index:    tags,
		Embedder: embedder,
		Redis:    rdb,
		Logger:   log,
	}, retrieval.Config{
		MinQualityScore:     cfg.Retrieval.MinQualityScore,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		CandidateLimit:      cfg.Retrieval.CandidateLimit,
		MotifCap:            cfg.Retrieval.MotifCap,
		GlossaryCap:         cfg.Retrieval.GlossaryCap,
		TokenBudget:         cfg.Retrieval.TokenBudget,
		FreshnessThreshold:  cfg.Knowledge.FreshnessThreshold(),
		CostPer1KTokens:     cfg.Retrieval.CostPer1KTokens,
	})

	// --- Pipeline ---
	orch := pipeline.New(pipeline.Deps{
		LLM:       newNormalizer(cfg, log),
		Retriever: engine,
		Logger:    log,
		Obs:       obs,
	}, pipeline.Config{
		MaxRetries:          cfg.Pipeline.MaxRetries,
		FallbackToRuleBased: cfg.Pipeline.FallbackToRuleBased,
		DefaultSize:         models.Size{Width: cfg.Pipeline.DefaultWidth, Height: cfg.Pipeline.DefaultHeight},
		DefaultMaxElements:  cfg.Pipeline.DefaultMaxElements,
		MaxComponents:       cfg.Pipeline.MaxComponents,
		Timeout:             config.GetDuration(cfg.Pipeline.Timeout),
	})

	lifecycle := knowledge.NewLifecycle(store, cfg.Knowledge.FreshnessThreshold(), cfg.Knowledge.DeprecationQuality, log)

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers []worker.JobWorker
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		zbc := zeebe.GetClient()
		handlers := map[string]camunda.JobHandler{
			gs.TaskType: gs.NewHandler(&gs.Config{
				Timeout: workerTimeout(cfg, gs.TaskType, gs.LoadConfig().Timeout),
			}, orch, reg, log),
			rg.TaskType: rg.NewHandler(&rg.Config{
				Timeout: workerTimeout(cfg, rg.TaskType, rg.LoadConfig().Timeout),
			}, engine, reg, log),
			sk.TaskType: sk.NewHandler(&sk.Config{
				Timeout: workerTimeout(cfg, sk.TaskType, sk.LoadConfig().Timeout),
			}, lifecycle, log),
		}
		for taskType, h := range handlers {
			if jw := camunda.StartWorker(zbc, taskType, config.GetWorkerConfig(cfg, taskType), h, log); jw != nil {
				workers = append(workers, jw)
			}
		}
	} else {
		zapLog.Info("camunda disabled, serving HTTP only")
	}

	// --- HTTP ---
	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis": func(ctx context.Context) error {
			return database.PingRedis(ctx, rdb)
		},
	}
	if zeebe != nil {
		checks["zeebe"] = zeebe.HealthCheck
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.Deps{
			Generator: orch,
			Retriever: engine,
			Knowledge: store,
			Checks:    checks,
			Logger:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("HTTP server shutdown", zap.Error(err))
	}

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if zeebe != nil {
		zeebe.Close()
	}

	zapLog.Info("Worker manager stopped")
}

// newNormalizer returns nil when no LLM is configured; the pipeline then
// normalizes with rules only.
func newNormalizer(cfg *config.Config, log logger.Logger) pipeline.IntentNormalizer {
	llm := cfg.APIs.LLM
	if llm.Provider == "" || llm.APIKey == "" {
		return nil
	}
	cc := genai.ClientConfig{
		BaseURL:    llm.BaseURL,
		APIKey:     llm.APIKey,
		Timeout:    config.GetDuration(llm.Timeout),
		MaxRetries: 1,
	}

	var completer pipeline.Completer
	switch llm.Provider {
	case "anthropic":
		completer = pipeline.NewAnthropicCompleter(genai.NewAnthropicClient(cc))
	default:
		completer = pipeline.NewOpenAICompleter(genai.NewOpenAIClient(cc))
	}
	return pipeline.NewLLMNormalizer(completer, llm.Model, log)
}

func connectElasticsearch(ctx context.Context, cfg config.ElasticsearchConfig, log logger.Logger) (*elasticsearch.Client, error) {
	es, err := database.NewElasticsearch(cfg)
	if err != nil {
		return nil, err
	}
	rc := &camunda.RetryConfig{MaxRetries: 5, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	err = camunda.Retry(ctx, rc, log, "elasticsearch index setup", func(ctx context.Context) error {
		return database.EnsureIndex(ctx, es, cfg.Index)
	})
	if err != nil {
		return nil, err
	}
	return es, nil
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if wc, ok := cfg.Workers[taskType]; ok && wc.Timeout > 0 {
		return config.GetDuration(wc.Timeout)
	}
	return fallback
}
