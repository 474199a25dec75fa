package monitoring

import (
	"sort"
	"time"
)

// PerformanceStats computes the aggregate statistics snapshot. Retention
// pruning runs first so expired samples never contribute to the aggregates.
//
// The result always contains the timestamp, hit-rate, and operation counters.
// The key_generation, cache_operations, compression, memory_usage, and
// invalidation sections are present only when at least one sample of that
// kind exists.
func (m *PerformanceMonitor) PerformanceStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneAllLocked()

	stats := map[string]interface{}{
		"timestamp":              time.Now().Format(time.RFC3339),
		"cache_hit_rate":         m.hitRateLocked(),
		"total_cache_operations": m.totalOperations,
		"cache_hits":             m.cacheHits,
		"cache_misses":           m.cacheMisses,
	}

	if len(m.keyGenerationTimes) > 0 {
		stats["key_generation"] = m.keyGenerationStatsLocked()
	}
	if len(m.cacheOperationTimes) > 0 {
		stats["cache_operations"] = m.cacheOperationStatsLocked()
	}
	if len(m.compressionRatios) > 0 {
		stats["compression"] = m.compressionStatsLocked()
	}
	if len(m.memoryUsageMeasurements) > 0 {
		stats["memory_usage"] = m.memoryUsageStatsLocked()
	}
	if len(m.invalidationEvents) > 0 {
		stats["invalidation"] = m.invalidationStatsLocked()
	}

	return stats
}

func (m *PerformanceMonitor) keyGenerationStatsLocked() map[string]interface{} {
	durations := make([]float64, 0, len(m.keyGenerationTimes))
	textLengths := make([]float64, 0, len(m.keyGenerationTimes))
	slowCount := 0

	threshold := m.config.KeyGenerationThreshold.Seconds()
	for _, s := range m.keyGenerationTimes {
		durations = append(durations, s.Duration)
		textLengths = append(textLengths, float64(s.TextLength))
		if s.Duration > threshold {
			slowCount++
		}
	}

	return map[string]interface{}{
		"total_operations": len(m.keyGenerationTimes),
		"avg_duration":     mean(durations),
		"median_duration":  median(durations),
		"max_duration":     max64(durations),
		"min_duration":     min64(durations),
		"avg_text_length":  mean(textLengths),
		"max_text_length":  int(max64(textLengths)),
		"slow_operations":  slowCount,
	}
}

func (m *PerformanceMonitor) cacheOperationStatsLocked() map[string]interface{} {
	durations := make([]float64, 0, len(m.cacheOperationTimes))
	slowCount := 0
	byType := make(map[string][]float64)

	threshold := m.config.CacheOperationThreshold.Seconds()
	for _, s := range m.cacheOperationTimes {
		durations = append(durations, s.Duration)
		byType[s.OperationType] = append(byType[s.OperationType], s.Duration)
		if s.Duration > threshold {
			slowCount++
		}
	}

	byTypeStats := make(map[string]interface{}, len(byType))
	for op, ds := range byType {
		byTypeStats[op] = map[string]interface{}{
			"count":        len(ds),
			"avg_duration": mean(ds),
			"max_duration": max64(ds),
		}
	}

	return map[string]interface{}{
		"total_operations":  len(m.cacheOperationTimes),
		"avg_duration":      mean(durations),
		"median_duration":   median(durations),
		"max_duration":      max64(durations),
		"min_duration":      min64(durations),
		"slow_operations":   slowCount,
		"by_operation_type": byTypeStats,
	}
}

func (m *PerformanceMonitor) compressionStatsLocked() map[string]interface{} {
	ratios := make([]float64, 0, len(m.compressionRatios))
	times := make([]float64, 0, len(m.compressionRatios))
	var totalProcessed, totalSaved int64

	for _, s := range m.compressionRatios {
		ratios = append(ratios, s.CompressionRatio)
		times = append(times, s.CompressionTime)
		totalProcessed += int64(s.OriginalSize)
		totalSaved += int64(s.OriginalSize - s.CompressedSize)
	}

	savingsPercent := 0.0
	if totalProcessed > 0 {
		savingsPercent = float64(totalSaved) / float64(totalProcessed) * 100
	}

	return map[string]interface{}{
		"total_operations":         len(m.compressionRatios),
		"avg_compression_ratio":    mean(ratios),
		"median_compression_ratio": median(ratios),
		"best_compression_ratio":   min64(ratios),
		"worst_compression_ratio":  max64(ratios),
		"avg_compression_time":     mean(times),
		"max_compression_time":     max64(times),
		"total_bytes_processed":    totalProcessed,
		"total_bytes_saved":        totalSaved,
		"overall_savings_percent":  savingsPercent,
	}
}

func (m *PerformanceMonitor) memoryUsageStatsLocked() map[string]interface{} {
	latest := m.memoryUsageMeasurements[len(m.memoryUsageMeasurements)-1]

	totals := make([]float64, 0, len(m.memoryUsageMeasurements))
	for _, s := range m.memoryUsageMeasurements {
		totals = append(totals, float64(s.TotalCacheSizeBytes))
	}

	return map[string]interface{}{
		"current": map[string]interface{}{
			"total_cache_size_bytes":    latest.TotalCacheSizeBytes,
			"cache_entry_count":         latest.CacheEntryCount,
			"avg_entry_size_bytes":      latest.AvgEntrySizeBytes,
			"memory_cache_size_bytes":   latest.MemoryCacheSizeBytes,
			"memory_cache_entry_count":  latest.MemoryCacheEntryCount,
			"process_memory_mb":         latest.ProcessMemoryMB,
			"cache_utilization_percent": latest.CacheUtilizationPercent,
			"warning_threshold_reached": latest.WarningThresholdReached,
		},
		"thresholds": map[string]interface{}{
			"warning_threshold_bytes":  m.config.MemoryWarningThresholdBytes,
			"critical_threshold_bytes": m.config.MemoryCriticalThresholdBytes,
		},
		"measurement_count":    len(m.memoryUsageMeasurements),
		"avg_total_size_bytes": mean(totals),
		"max_total_size_bytes": int64(max64(totals)),
	}
}

func (m *PerformanceMonitor) invalidationStatsLocked() map[string]interface{} {
	durations := make([]float64, 0, len(m.invalidationEvents))
	for _, s := range m.invalidationEvents {
		durations = append(durations, s.Duration)
	}

	return map[string]interface{}{
		"total_invalidations":    m.totalInvalidations,
		"total_keys_invalidated": m.totalKeysInvalidated,
		"recent_events":          len(m.invalidationEvents),
		"avg_duration":           mean(durations),
		"max_duration":           max64(durations),
	}
}

// RecentSlowOperations reports samples whose duration exceeds the category
// mean multiplied by thresholdMultiplier. Categories with fewer than two
// samples return empty lists so the mean is always meaningful.
func (m *PerformanceMonitor) RecentSlowOperations(thresholdMultiplier float64) map[string][]map[string]interface{} {
	if thresholdMultiplier <= 0 {
		thresholdMultiplier = 2.0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := map[string][]map[string]interface{}{
		"key_generation":   {},
		"cache_operations": {},
		"compression":      {},
	}

	if len(m.keyGenerationTimes) >= 2 {
		durations := make([]float64, len(m.keyGenerationTimes))
		for i, s := range m.keyGenerationTimes {
			durations[i] = s.Duration
		}
		avg := mean(durations)
		if avg > 0 {
			for _, s := range m.keyGenerationTimes {
				if s.Duration > avg*thresholdMultiplier {
					result["key_generation"] = append(result["key_generation"], map[string]interface{}{
						"duration":       s.Duration,
						"text_length":    s.TextLength,
						"operation_type": s.OperationType,
						"timestamp":      s.Timestamp,
						"times_slower":   s.Duration / avg,
					})
				}
			}
		}
	}

	if len(m.cacheOperationTimes) >= 2 {
		durations := make([]float64, len(m.cacheOperationTimes))
		for i, s := range m.cacheOperationTimes {
			durations[i] = s.Duration
		}
		avg := mean(durations)
		if avg > 0 {
			for _, s := range m.cacheOperationTimes {
				if s.Duration > avg*thresholdMultiplier {
					result["cache_operations"] = append(result["cache_operations"], map[string]interface{}{
						"duration":       s.Duration,
						"operation_type": s.OperationType,
						"text_length":    s.TextLength,
						"timestamp":      s.Timestamp,
						"times_slower":   s.Duration / avg,
					})
				}
			}
		}
	}

	if len(m.compressionRatios) >= 2 {
		times := make([]float64, len(m.compressionRatios))
		for i, s := range m.compressionRatios {
			times[i] = s.CompressionTime
		}
		avg := mean(times)
		if avg > 0 {
			for _, s := range m.compressionRatios {
				if s.CompressionTime > avg*thresholdMultiplier {
					result["compression"] = append(result["compression"], map[string]interface{}{
						"compression_time":  s.CompressionTime,
						"original_size":     s.OriginalSize,
						"compression_ratio": s.CompressionRatio,
						"operation_type":    s.OperationType,
						"timestamp":         s.Timestamp,
						"times_slower":      s.CompressionTime / avg,
					})
				}
			}
		}
	}

	return result
}

// MemoryUsageStats returns the memory usage section on its own. The result
// is empty when no snapshots have been recorded.
func (m *PerformanceMonitor) MemoryUsageStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.memoryUsageMeasurements) == 0 {
		return map[string]interface{}{}
	}
	return m.memoryUsageStatsLocked()
}

// MemoryWarnings returns active memory alerts based on the latest snapshot.
// Severity is "critical" above the critical threshold, "warning" above the
// warning threshold, and "info" when the in-memory tier is nearly full.
func (m *PerformanceMonitor) MemoryWarnings() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	warnings := []map[string]interface{}{}
	if len(m.memoryUsageMeasurements) == 0 {
		return warnings
	}

	latest := m.memoryUsageMeasurements[len(m.memoryUsageMeasurements)-1]

	if latest.TotalCacheSizeBytes >= m.config.MemoryCriticalThresholdBytes {
		warnings = append(warnings, map[string]interface{}{
			"severity":        "critical",
			"message":         "Cache memory usage is above the critical threshold",
			"current_bytes":   latest.TotalCacheSizeBytes,
			"threshold_bytes": m.config.MemoryCriticalThresholdBytes,
			"recommendation":  "Reduce TTLs or invalidate unused entries immediately",
		})
	} else if latest.TotalCacheSizeBytes >= m.config.MemoryWarningThresholdBytes {
		warnings = append(warnings, map[string]interface{}{
			"severity":        "warning",
			"message":         "Cache memory usage is above the warning threshold",
			"current_bytes":   latest.TotalCacheSizeBytes,
			"threshold_bytes": m.config.MemoryWarningThresholdBytes,
			"recommendation":  "Review entry sizes and consider lowering the compression threshold",
		})
	}

	if latest.CacheUtilizationPercent >= 90 {
		warnings = append(warnings, map[string]interface{}{
			"severity":       "info",
			"message":        "Cache utilization is approaching capacity",
			"utilization":    latest.CacheUtilizationPercent,
			"recommendation": "Consider raising memory thresholds or reducing cached payload sizes",
		})
	}

	return warnings
}

// InvalidationFrequencyStats analyzes invalidation rates against the
// configured hourly thresholds and summarizes the recorded patterns.
func (m *PerformanceMonitor) InvalidationFrequencyStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := unixNow()
	lastHour := 0
	lastDay := 0
	patternCounts := make(map[string]int)
	typeCounts := make(map[string]int)
	var totalKeys int64
	var totalDuration float64

	for _, e := range m.invalidationEvents {
		age := now - e.Timestamp
		if age <= 3600 {
			lastHour++
		}
		if age <= 86400 {
			lastDay++
		}
		patternCounts[e.Pattern]++
		typeCounts[e.InvalidationType]++
		totalKeys += int64(e.KeysInvalidated)
		totalDuration += e.Duration
	}

	alertLevel := "normal"
	if lastHour >= m.config.InvalidationRateCriticalPerHour {
		alertLevel = "critical"
	} else if lastHour >= m.config.InvalidationRateWarningPerHour {
		alertLevel = "warning"
	}

	efficiency := 0.0
	avgDuration := 0.0
	if len(m.invalidationEvents) > 0 {
		efficiency = float64(totalKeys) / float64(len(m.invalidationEvents))
		avgDuration = totalDuration / float64(len(m.invalidationEvents))
	}

	return map[string]interface{}{
		"total_invalidations":    m.totalInvalidations,
		"total_keys_invalidated": m.totalKeysInvalidated,
		"rates": map[string]interface{}{
			"last_hour":          lastHour,
			"last_24_hours":      lastDay,
			"warning_threshold":  m.config.InvalidationRateWarningPerHour,
			"critical_threshold": m.config.InvalidationRateCriticalPerHour,
		},
		"alert_level":          alertLevel,
		"most_common_patterns": topCounts(patternCounts, 5),
		"most_common_types":    topCounts(typeCounts, 5),
		"efficiency": map[string]interface{}{
			"avg_keys_per_invalidation": efficiency,
			"avg_duration":              avgDuration,
		},
	}
}

// InvalidationRecommendations returns actionable recommendations ordered by
// severity (critical, then warning, then info), de-duplicated by message.
func (m *PerformanceMonitor) InvalidationRecommendations() []map[string]interface{} {
	stats := m.InvalidationFrequencyStats()

	var recommendations []map[string]interface{}
	seen := make(map[string]bool)

	add := func(severity, message, action string) {
		if seen[message] {
			return
		}
		seen[message] = true
		recommendations = append(recommendations, map[string]interface{}{
			"severity": severity,
			"message":  message,
			"action":   action,
		})
	}

	rates := stats["rates"].(map[string]interface{})
	lastHour := rates["last_hour"].(int)

	switch stats["alert_level"] {
	case "critical":
		add("critical",
			"Invalidation rate is critically high",
			"Investigate what is triggering invalidations and batch related patterns together")
	case "warning":
		add("warning",
			"Invalidation rate is above the warning threshold",
			"Review invalidation triggers and consider relying on TTL expiry instead")
	}

	efficiency := stats["efficiency"].(map[string]interface{})
	avgKeys := efficiency["avg_keys_per_invalidation"].(float64)
	if lastHour > 0 && avgKeys < 1.0 {
		add("info",
			"Many invalidations match no keys",
			"Tighten invalidation patterns so each call removes at least one entry")
	}

	patterns := stats["most_common_patterns"].([]map[string]interface{})
	if len(patterns) > 0 {
		if count, ok := patterns[0]["count"].(int); ok && count >= 10 {
			add("info",
				"A single pattern dominates invalidation traffic",
				"Consider scoping the dominant pattern more narrowly or caching it separately")
		}
	}

	// Severity-ordered output: critical first, info last.
	order := map[string]int{"critical": 0, "warning": 1, "info": 2}
	sort.SliceStable(recommendations, func(i, j int) bool {
		return order[recommendations[i]["severity"].(string)] < order[recommendations[j]["severity"].(string)]
	})

	if recommendations == nil {
		recommendations = []map[string]interface{}{}
	}
	return recommendations
}

// Aggregation helpers. All guard against empty input so conditional stats
// sections can never panic.

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func max64(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	result := values[0]
	for _, v := range values[1:] {
		if v > result {
			result = v
		}
	}
	return result
}

func min64(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	result := values[0]
	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}
	return result
}

func topCounts(counts map[string]int, limit int) []map[string]interface{} {
	type kv struct {
		key   string
		count int
	}
	items := make([]kv, 0, len(counts))
	for k, c := range counts {
		items = append(items, kv{k, c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].key < items[j].key
	})

	if len(items) > limit {
		items = items[:limit]
	}

	result := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		result = append(result, map[string]interface{}{
			"value": item.key,
			"count": item.count,
		})
	}
	return result
}
