package knowledge

import (
	"context"
	"time"

	"design-workers/internal/common/logger"
	"design-workers/internal/models"
)

// LifecycleStore is the part of Store used by the sweep.
type LifecycleStore interface {
	ListStale(ctx context.Context, cutoff time.Time, maxQuality float64) ([]models.KnowledgeObject, error)
	Deprecate(ctx context.Context, id, reason string) (*models.KnowledgeObject, error)
}

// Lifecycle retires stale, low-quality knowledge.
type Lifecycle struct {
	store     LifecycleStore
	threshold time.Duration
	minQual   float64
	logger    logger.Logger
	now       func() time.Time
}

func NewLifecycle(store LifecycleStore, freshness time.Duration, minQuality float64, log logger.Logger) *Lifecycle {
	return &Lifecycle{
		store:     store,
		threshold: freshness,
		minQual:   minQuality,
		logger:    log.WithFields(map[string]interface{}{"component": "knowledge-lifecycle"}),
		now:       time.Now,
	}
}

type SweepResult struct {
	Checked    int      `json:"checked"`
	Deprecated []string `json:"deprecated"`
	Failed     []string `json:"failed,omitempty"`
}

// Sweep deprecates every active object older than the freshness threshold
// whose quality is below the minimum. One failed deprecation does not stop
// the rest.
func (l *Lifecycle) Sweep(ctx context.Context) (*SweepResult, error) {
	cutoff := l.now().Add(-l.threshold)
	stale, err := l.store.ListStale(ctx, cutoff, l.minQual)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Checked: len(stale), Deprecated: []string{}}
	for _, obj := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := l.store.Deprecate(ctx, obj.ID, "stale and below quality threshold"); err != nil {
			l.logger.Warn("failed to deprecate stale object", map[string]interface{}{"id": obj.ID, "error": err})
			result.Failed = append(result.Failed, obj.ID)
			continue
		}
		result.Deprecated = append(result.Deprecated, obj.ID)
	}

	l.logger.Info("lifecycle sweep finished", map[string]interface{}{
		"checked":    result.Checked,
		"deprecated": len(result.Deprecated),
		"failed":     len(result.Failed),
	})
	return result, nil
}
