package retrieval

import (
	"context"

	"design-workers/internal/common/metrics"
	"design-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// UsageKey is the Redis hash holding process-wide retrieval counters.
const UsageKey = "grounding:usage"

// Usage records token and cost counters in Redis and Prometheus. Counters are
// increments, so concurrent recorders never lose updates.
type Usage struct {
	rdb       redis.Cmdable
	costPer1K float64
}

func NewUsage(rdb redis.Cmdable, costPer1K float64) *Usage {
	return &Usage{rdb: rdb, costPer1K: costPer1K}
}

func (u *Usage) RecordCacheHit(ctx context.Context) error {
	metrics.GroundingCacheHits.Inc()
	if u.rdb == nil {
		return nil
	}
	return u.rdb.HIncrBy(ctx, UsageKey, "cache_hits", 1).Err()
}

// RecordBundle counts a freshly built bundle and its estimated cost.
func (u *Usage) RecordBundle(ctx context.Context, tokens int, selected []models.ScoredObject) error {
	cost := EstimateCost(tokens, u.costPer1K)

	metrics.GroundingCacheMisses.Inc()
	metrics.GroundingTokens.Observe(float64(tokens))
	metrics.GroundingCost.Add(cost)
	for _, s := range selected {
		metrics.KnowledgeUsage.WithLabelValues(string(s.Kind)).Inc()
	}

	if u.rdb == nil {
		return nil
	}
	if err := u.rdb.HIncrBy(ctx, UsageKey, "cache_misses", 1).Err(); err != nil {
		return err
	}
	if err := u.rdb.HIncrBy(ctx, UsageKey, "tokens", int64(tokens)).Err(); err != nil {
		return err
	}
	return u.rdb.HIncrByFloat(ctx, UsageKey, "cost", cost).Err()
}
