package cache

import (
	"context"
	"strconv"
	"strings"
)

// CacheStats returns a point-in-time snapshot covering both tiers and the
// monitor's performance statistics. Each call also feeds a memory usage
// sample to the monitor, so calling CacheStats periodically doubles as
// memory tracking.
//
// The redis section reports status "unavailable" when the store is
// unreachable and "error" when a store call fails mid-snapshot; the snapshot
// itself always succeeds.
func (c *AIResponseCache) CacheStats(ctx context.Context) map[string]interface{} {
	redisStats := c.redisStats(ctx)

	memoryEntries := c.memory.Len()
	memoryBytes := c.memory.SizeBytes()

	utilization := 0.0
	if c.config.MemoryCacheSize > 0 {
		utilization = float64(memoryEntries) / float64(c.config.MemoryCacheSize) * 100
	}

	c.monitor.RecordMemoryUsage(memoryBytes, memoryEntries, redisStats, nil)

	return map[string]interface{}{
		"redis": redisStats,
		"memory": map[string]interface{}{
			"memory_cache_entries":     memoryEntries,
			"memory_cache_size_limit":  c.config.MemoryCacheSize,
			"memory_cache_utilization": utilization,
		},
		"performance": c.monitor.PerformanceStats(),
	}
}

// redisStats collects store-side statistics via DBSIZE and INFO. Anything
// that fails degrades the status field rather than failing the snapshot.
func (c *AIResponseCache) redisStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"status":            "unavailable",
		"keys":              int64(0),
		"memory_used":       "unknown",
		"memory_used_bytes": int64(0),
		"connected_clients": int64(0),
	}

	client := c.redisClient(ctx)
	if client == nil {
		return stats
	}
	stats["status"] = "connected"

	keys, err := client.DBSize(ctx).Result()
	if err != nil {
		stats["status"] = "error"
		return stats
	}
	stats["keys"] = keys

	info, err := client.Info(ctx, "memory", "clients").Result()
	if err != nil {
		// Some servers (and test doubles) implement INFO partially or not
		// at all; the store itself is fine, so the status stays connected
		// and the memory fields keep their defaults.
		return stats
	}

	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch name {
		case "used_memory":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				stats["memory_used_bytes"] = n
			}
		case "used_memory_human":
			stats["memory_used"] = value
		case "connected_clients":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				stats["connected_clients"] = n
			}
		}
	}
	return stats
}

// CacheHitRatio returns the hit rate over all recorded get operations as a
// percentage.
func (c *AIResponseCache) CacheHitRatio() float64 {
	return c.monitor.HitRate()
}

// PerformanceSummary returns the monitor's aggregated statistics
func (c *AIResponseCache) PerformanceSummary() map[string]interface{} {
	return c.monitor.PerformanceStats()
}

// MemoryUsageStats returns the most recent memory snapshot plus trend data
func (c *AIResponseCache) MemoryUsageStats() map[string]interface{} {
	return c.monitor.MemoryUsageStats()
}

// MemoryWarnings returns active memory warnings ordered by severity
func (c *AIResponseCache) MemoryWarnings() []map[string]interface{} {
	return c.monitor.MemoryWarnings()
}

// InvalidationFrequencyStats returns invalidation rates and alert levels
func (c *AIResponseCache) InvalidationFrequencyStats() map[string]interface{} {
	return c.monitor.InvalidationFrequencyStats()
}

// InvalidationRecommendations returns tuning suggestions derived from the
// recorded invalidation activity.
func (c *AIResponseCache) InvalidationRecommendations() []map[string]interface{} {
	return c.monitor.InvalidationRecommendations()
}

// ResetPerformanceStats clears every recorded sample and counter
func (c *AIResponseCache) ResetPerformanceStats() {
	c.monitor.ResetStats()
}
