package cache

import (
	"context"
	"time"

	"github.com/text-mesh/text-mesh/pkg/cache/monitoring"
	"github.com/text-mesh/text-mesh/pkg/observability"
)

// InvalidatePattern removes every Redis key matching
// "ai_cache:*<pattern>*" and returns the number of keys removed. Matching
// zero keys is a normal outcome, not an error. Every call is recorded as an
// invalidation event, failed attempts included.
func (c *AIResponseCache) InvalidatePattern(ctx context.Context, pattern, operationContext string) (int, error) {
	ctx, span := observability.StartSpan(ctx, "cache.invalidate_pattern")
	defer span.End()
	span.SetAttribute("cache.pattern", pattern)

	start := time.Now()

	client := c.redisClient(ctx)
	if client == nil {
		c.logger.Warn("Invalidation skipped, store unavailable", map[string]interface{}{
			"pattern": pattern,
			"context": operationContext,
		})
		c.recordInvalidation(pattern, 0, start, operationContext, map[string]interface{}{
			"status": "failed",
			"reason": "redis_connection_failed",
		})
		return 0, ErrStorageUnavailable
	}

	match := KeyPrefix + "*" + pattern + "*"
	keys, err := client.Keys(ctx, match).Result()
	if err != nil {
		c.logger.Warn("Invalidation key scan failed", map[string]interface{}{
			"pattern": pattern,
			"error":   err.Error(),
		})
		c.recordInvalidation(pattern, 0, start, operationContext, map[string]interface{}{
			"status": "failed",
			"reason": "redis_error",
		})
		span.RecordError(err)
		return 0, err
	}

	removed := 0
	if len(keys) > 0 {
		n, err := client.Del(ctx, keys...).Result()
		if err != nil {
			c.logger.Warn("Invalidation delete failed", map[string]interface{}{
				"pattern": pattern,
				"error":   err.Error(),
			})
			c.recordInvalidation(pattern, int(n), start, operationContext, map[string]interface{}{
				"status": "failed",
				"reason": "redis_error",
			})
			span.RecordError(err)
			return int(n), err
		}
		removed = int(n)
	}

	c.recordInvalidation(pattern, removed, start, operationContext, map[string]interface{}{
		"status": "ok",
	})

	c.logger.Info("Invalidated cache entries", map[string]interface{}{
		"pattern": pattern,
		"removed": removed,
		"context": operationContext,
	})
	span.SetAttribute("cache.keys_invalidated", removed)
	return removed, nil
}

// InvalidateAll removes every key under the cache namespace
func (c *AIResponseCache) InvalidateAll(ctx context.Context, operationContext string) (int, error) {
	return c.InvalidatePattern(ctx, "", operationContext)
}

// InvalidateByOperation removes every cached response for one AI operation
func (c *AIResponseCache) InvalidateByOperation(ctx context.Context, operation, operationContext string) (int, error) {
	return c.InvalidatePattern(ctx, "op:"+operation, operationContext)
}

// InvalidateMemoryCache clears the in-memory tier only. Redis entries are
// untouched, so subsequent small-text lookups fall through to Redis and
// repopulate the tier.
func (c *AIResponseCache) InvalidateMemoryCache(operationContext string) int {
	start := time.Now()
	removed := c.memory.Clear()

	c.monitor.RecordInvalidationEvent("memory_cache", removed, time.Since(start),
		monitoring.InvalidationTypeMemory, operationContext, map[string]interface{}{
			"status": "ok",
		})

	c.logger.Info("Cleared in-memory cache tier", map[string]interface{}{
		"removed": removed,
		"context": operationContext,
	})
	return removed
}

func (c *AIResponseCache) recordInvalidation(pattern string, removed int, start time.Time, operationContext string, additionalData map[string]interface{}) {
	c.monitor.RecordInvalidationEvent(pattern, removed, time.Since(start),
		monitoring.InvalidationTypeManual, operationContext, additionalData)
}
