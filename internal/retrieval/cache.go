package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "grounding:"

// CacheKey derives the cache key from the prompt and user.
func CacheKey(prompt, userID string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + userID))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Cache stores grounding bundles in Redis with per-entry TTL. Concurrent
// writers for the same key race; the last write wins.
type Cache struct {
	rdb redis.Cmdable
}

func NewCache(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the cached bundle. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) (*models.GroundingData, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewCacheFailedError(err)
	}

	var g models.GroundingData
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, false, apperrors.NewCacheFailedError(err)
	}
	return &g, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, g *models.GroundingData, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return apperrors.NewCacheFailedError(err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return apperrors.NewCacheFailedError(err)
	}
	return nil
}
