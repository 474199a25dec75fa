package monitoring

// PerformanceMetric represents a single timed operation, either key
// generation or a cache get/set. Samples are append-only; the monitor prunes
// them by age and count but never mutates them.
type PerformanceMetric struct {
	Duration       float64                `json:"duration"`
	TextLength     int                    `json:"text_length"`
	Timestamp      float64                `json:"timestamp"`
	OperationType  string                 `json:"operation_type"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

// CompressionMetric represents one compression event. The ratio is computed
// at record time from the original and compressed sizes; it is never stored
// as an unset sentinel.
type CompressionMetric struct {
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	CompressionTime  float64 `json:"compression_time"`
	Timestamp        float64 `json:"timestamp"`
	OperationType    string  `json:"operation_type"`
}

// MemoryUsageMetric is a point-in-time snapshot of cache memory consumption
// across both tiers plus the process heap.
type MemoryUsageMetric struct {
	TotalCacheSizeBytes     int64                  `json:"total_cache_size_bytes"`
	CacheEntryCount         int                    `json:"cache_entry_count"`
	AvgEntrySizeBytes       float64                `json:"avg_entry_size_bytes"`
	MemoryCacheSizeBytes    int64                  `json:"memory_cache_size_bytes"`
	MemoryCacheEntryCount   int                    `json:"memory_cache_entry_count"`
	ProcessMemoryMB         float64                `json:"process_memory_mb"`
	Timestamp               float64                `json:"timestamp"`
	CacheUtilizationPercent float64                `json:"cache_utilization_percent"`
	WarningThresholdReached bool                   `json:"warning_threshold_reached"`
	AdditionalData          map[string]interface{} `json:"additional_data,omitempty"`
}

// InvalidationMetric records one invalidation event: which pattern was used,
// how many keys it removed, and how it was triggered.
type InvalidationMetric struct {
	EventID          string                 `json:"event_id"`
	Pattern          string                 `json:"pattern"`
	KeysInvalidated  int                    `json:"keys_invalidated"`
	Duration         float64                `json:"duration"`
	Timestamp        float64                `json:"timestamp"`
	InvalidationType string                 `json:"invalidation_type"`
	OperationContext string                 `json:"operation_context"`
	AdditionalData   map[string]interface{} `json:"additional_data,omitempty"`
}

// Invalidation types
const (
	InvalidationTypeManual    = "manual"
	InvalidationTypeAutomatic = "automatic"
	InvalidationTypeTTL       = "ttl_expired"
	InvalidationTypeMemory    = "memory"
)

// pruneByAge drops samples whose timestamp is older than cutoff, then caps
// the list to the most recent max entries. The age filter runs first so the
// count cap always keeps the newest samples.
func pruneByAge[T any](samples []T, timestamp func(T) float64, cutoff float64, max int) []T {
	kept := samples[:0]
	for _, s := range samples {
		if timestamp(s) >= cutoff {
			kept = append(kept, s)
		}
	}
	if max > 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}
