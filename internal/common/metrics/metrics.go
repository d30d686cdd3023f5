// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of jobs currently being processed",
		},
		[]string{"task_type"},
	)

	// Pipeline

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svg_pipeline_runs_total",
			Help: "Generation requests by outcome (success, fallback)",
		},
		[]string{"outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svg_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"stage"},
	)

	NormalizerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "svg_normalizer_fallbacks_total",
			Help: "LLM normalizations that fell back to the rule-based normalizer",
		},
	)

	RepairIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "svg_repair_iterations",
			Help:    "Repair iterations used per document",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	ComponentsRendered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "svg_components_rendered",
			Help:    "Number of components per rendered document",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)

	// Retrieval

	GroundingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grounding_cache_hits_total",
			Help: "Grounding bundles served from cache",
		},
	)

	GroundingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grounding_cache_misses_total",
			Help: "Grounding bundles computed from the store",
		},
	)

	GroundingTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grounding_bundle_tokens",
			Help:    "Estimated token size of returned grounding bundles",
			Buckets: prometheus.LinearBuckets(250, 250, 16),
		},
	)

	GroundingCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grounding_estimated_cost_total",
			Help: "Accumulated estimated prompt cost of grounding bundles",
		},
	)

	KnowledgeUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_object_usage_total",
			Help: "Times a knowledge object kind was included in a bundle",
		},
		[]string{"kind"},
	)

	// Knowledge lifecycle

	KnowledgeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_lifecycle_transitions_total",
			Help: "Knowledge status transitions by target status",
		},
		[]string{"status"},
	)
)
