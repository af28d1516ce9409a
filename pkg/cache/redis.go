package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lexroom/redline/pkg/contracts"
)

// RedisCache stores projections in Redis so that multiple service instances
// share one cache and invalidation is visible across the fleet.
//
// Reads fail open: a Redis error is logged and reported as a miss, so cache
// degradation slows projections down but never breaks them. Writes return
// their errors so callers can decide whether staleness matters.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed projection cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func projectionKey(clauseID string) string {
	return fmt.Sprintf("projection:%s", clauseID)
}

// Get returns the cached projection for the clause, if present.
func (c *RedisCache) Get(ctx context.Context, clauseID string) (contracts.ProjectionResult, bool, error) {
	raw, err := c.client.Get(ctx, projectionKey(clauseID)).Bytes()
	if err == redis.Nil {
		return contracts.ProjectionResult{}, false, nil
	}
	if err != nil {
		c.logger.Warn("projection cache read failed", "clause_id", clauseID, "error", err)
		return contracts.ProjectionResult{}, false, nil
	}

	var result contracts.ProjectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is unusable; drop it and recompute.
		c.logger.Warn("projection cache entry corrupt", "clause_id", clauseID, "error", err)
		_ = c.client.Del(ctx, projectionKey(clauseID)).Err()
		return contracts.ProjectionResult{}, false, nil
	}
	return result, true, nil
}

// Set stores the projection for the clause with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, clauseID string, result contracts.ProjectionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal projection for clause %s: %w", clauseID, err)
	}
	if err := c.client.Set(ctx, projectionKey(clauseID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache projection for clause %s: %w", clauseID, err)
	}
	return nil
}

// Invalidate removes the cached projection for the clause.
func (c *RedisCache) Invalidate(ctx context.Context, clauseID string) error {
	if err := c.client.Del(ctx, projectionKey(clauseID)).Err(); err != nil {
		return fmt.Errorf("invalidate projection for clause %s: %w", clauseID, err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)
