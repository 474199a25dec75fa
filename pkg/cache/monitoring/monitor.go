// Package monitoring implements performance monitoring for the AI response
// cache: timing samples for key generation and cache operations, compression
// ratios, memory usage snapshots, and invalidation events, with retention
// pruning, aggregate statistics, threshold-based warnings, and actionable
// recommendations.
package monitoring

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/text-mesh/text-mesh/pkg/observability"
)

// Config holds the monitor's thresholds and retention policy
type Config struct {
	// RetentionPeriod is how long samples are kept before age-based pruning
	RetentionPeriod time.Duration
	// MaxMeasurements caps each sample list after age-based pruning
	MaxMeasurements int
	// KeyGenerationThreshold is the duration above which a key generation is logged as slow
	KeyGenerationThreshold time.Duration
	// CacheOperationThreshold is the duration above which a cache operation is logged as slow
	CacheOperationThreshold time.Duration
	// MemoryWarningThresholdBytes triggers warning-level memory alerts
	MemoryWarningThresholdBytes int64
	// MemoryCriticalThresholdBytes triggers critical-level memory alerts
	MemoryCriticalThresholdBytes int64
	// InvalidationRateWarningPerHour triggers warning-level invalidation alerts
	InvalidationRateWarningPerHour int
	// InvalidationRateCriticalPerHour triggers critical-level invalidation alerts
	InvalidationRateCriticalPerHour int
}

// DefaultConfig returns the monitor configuration used in production
func DefaultConfig() *Config {
	return &Config{
		RetentionPeriod:                 time.Hour,
		MaxMeasurements:                 1000,
		KeyGenerationThreshold:          100 * time.Millisecond,
		CacheOperationThreshold:         50 * time.Millisecond,
		MemoryWarningThresholdBytes:     50 * 1024 * 1024,
		MemoryCriticalThresholdBytes:    100 * 1024 * 1024,
		InvalidationRateWarningPerHour:  50,
		InvalidationRateCriticalPerHour: 100,
	}
}

// PerformanceMonitor accumulates cache performance samples and computes
// derived statistics. One monitor instance is shared by all components of a
// single AIResponseCache; it is safe for concurrent use.
//
// The monitor never persists its samples. Retention pruning runs on every
// record call and again at the start of PerformanceStats.
type PerformanceMonitor struct {
	mu     sync.Mutex
	config *Config

	logger  observability.Logger
	metrics observability.MetricsClient

	keyGenerationTimes      []PerformanceMetric
	cacheOperationTimes     []PerformanceMetric
	compressionRatios       []CompressionMetric
	memoryUsageMeasurements []MemoryUsageMetric
	invalidationEvents      []InvalidationMetric

	cacheHits            int64
	cacheMisses          int64
	totalOperations      int64
	totalInvalidations   int64
	totalKeysInvalidated int64
}

// NewPerformanceMonitor creates a monitor with the given configuration.
// A nil config uses DefaultConfig; nil logger and metrics fall back to
// no-op implementations.
func NewPerformanceMonitor(config *Config, logger observability.Logger, metrics observability.MetricsClient) *PerformanceMonitor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NewLogger("cache.monitoring")
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}

	return &PerformanceMonitor{
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// RecordKeyGenerationTime records the duration of one cache key generation
func (m *PerformanceMonitor) RecordKeyGenerationTime(duration time.Duration, textLength int, operationType string, additionalData map[string]interface{}) {
	seconds := duration.Seconds()

	m.mu.Lock()
	m.keyGenerationTimes = append(m.keyGenerationTimes, PerformanceMetric{
		Duration:       seconds,
		TextLength:     textLength,
		Timestamp:      unixNow(),
		OperationType:  operationType,
		AdditionalData: additionalData,
	})
	m.keyGenerationTimes = m.prune(m.keyGenerationTimes)
	m.mu.Unlock()

	m.metrics.RecordHistogram("cache.key_generation.duration", seconds, map[string]string{
		"operation": operationType,
	})

	if duration > m.config.KeyGenerationThreshold {
		m.logger.Warn("Slow cache key generation", map[string]interface{}{
			"duration":    seconds,
			"text_length": textLength,
			"operation":   operationType,
		})
	}
}

// RecordCacheOperationTime records the duration and outcome of one cache
// operation. Hit and miss counters are tracked for "get" operations only;
// every operation increments the total.
func (m *PerformanceMonitor) RecordCacheOperationTime(operation string, duration time.Duration, cacheHit bool, textLength int, additionalData map[string]interface{}) {
	seconds := duration.Seconds()

	m.mu.Lock()
	m.cacheOperationTimes = append(m.cacheOperationTimes, PerformanceMetric{
		Duration:       seconds,
		TextLength:     textLength,
		Timestamp:      unixNow(),
		OperationType:  operation,
		AdditionalData: additionalData,
	})
	m.cacheOperationTimes = m.prune(m.cacheOperationTimes)

	m.totalOperations++
	if operation == "get" {
		if cacheHit {
			m.cacheHits++
		} else {
			m.cacheMisses++
		}
	}
	m.mu.Unlock()

	m.metrics.RecordCacheOperation(operation, cacheHit, seconds)

	if duration > m.config.CacheOperationThreshold {
		m.logger.Warn("Slow cache operation", map[string]interface{}{
			"operation":   operation,
			"duration":    seconds,
			"text_length": textLength,
		})
	}
}

// RecordCompressionRatio records the result of one payload compression.
// The ratio is compressed/original; an empty original counts as 1.0.
func (m *PerformanceMonitor) RecordCompressionRatio(originalSize, compressedSize int, compressionTime time.Duration, operationType string) {
	ratio := 1.0
	if originalSize > 0 {
		ratio = float64(compressedSize) / float64(originalSize)
	}

	m.mu.Lock()
	m.compressionRatios = append(m.compressionRatios, CompressionMetric{
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		CompressionRatio: ratio,
		CompressionTime:  compressionTime.Seconds(),
		Timestamp:        unixNow(),
		OperationType:    operationType,
	})
	m.compressionRatios = pruneByAge(m.compressionRatios, compressionTimestamp, m.cutoff(), m.config.MaxMeasurements)
	m.mu.Unlock()

	m.metrics.RecordHistogram("cache.compression.ratio", ratio, map[string]string{
		"operation": operationType,
	})
}

// RecordMemoryUsage takes a memory usage snapshot from the in-memory tier
// and the Redis INFO/DBSIZE stats supplied by the cache.
func (m *PerformanceMonitor) RecordMemoryUsage(memoryCacheSizeBytes int64, memoryCacheEntries int, redisStats map[string]interface{}, additionalData map[string]interface{}) {
	redisBytes := int64Value(redisStats, "memory_used_bytes")
	redisKeys := int(int64Value(redisStats, "keys"))

	totalBytes := memoryCacheSizeBytes + redisBytes
	entryCount := memoryCacheEntries + redisKeys

	avgEntrySize := 0.0
	if entryCount > 0 {
		avgEntrySize = float64(totalBytes) / float64(entryCount)
	}

	utilization := 0.0
	if m.config.MemoryWarningThresholdBytes > 0 {
		utilization = float64(totalBytes) / float64(m.config.MemoryWarningThresholdBytes) * 100
	}

	metric := MemoryUsageMetric{
		TotalCacheSizeBytes:     totalBytes,
		CacheEntryCount:         entryCount,
		AvgEntrySizeBytes:       avgEntrySize,
		MemoryCacheSizeBytes:    memoryCacheSizeBytes,
		MemoryCacheEntryCount:   memoryCacheEntries,
		ProcessMemoryMB:         processMemoryMB(),
		Timestamp:               unixNow(),
		CacheUtilizationPercent: utilization,
		WarningThresholdReached: totalBytes >= m.config.MemoryWarningThresholdBytes,
		AdditionalData:          additionalData,
	}

	m.mu.Lock()
	m.memoryUsageMeasurements = append(m.memoryUsageMeasurements, metric)
	m.memoryUsageMeasurements = pruneByAge(m.memoryUsageMeasurements, memoryTimestamp, m.cutoff(), m.config.MaxMeasurements)
	m.mu.Unlock()

	m.metrics.RecordGauge("cache.memory.total_bytes", float64(totalBytes), nil)
	m.metrics.RecordGauge("cache.memory.entry_count", float64(entryCount), nil)

	if totalBytes >= m.config.MemoryCriticalThresholdBytes {
		m.logger.Warn("Cache memory usage critical", map[string]interface{}{
			"total_bytes": totalBytes,
			"threshold":   m.config.MemoryCriticalThresholdBytes,
		})
	} else if metric.WarningThresholdReached {
		m.logger.Warn("Cache memory usage above warning threshold", map[string]interface{}{
			"total_bytes": totalBytes,
			"threshold":   m.config.MemoryWarningThresholdBytes,
		})
	}
}

// RecordInvalidationEvent records one invalidation, successful or not
func (m *PerformanceMonitor) RecordInvalidationEvent(pattern string, keysInvalidated int, duration time.Duration, invalidationType, operationContext string, additionalData map[string]interface{}) {
	m.mu.Lock()
	m.invalidationEvents = append(m.invalidationEvents, InvalidationMetric{
		EventID:          uuid.NewString(),
		Pattern:          pattern,
		KeysInvalidated:  keysInvalidated,
		Duration:         duration.Seconds(),
		Timestamp:        unixNow(),
		InvalidationType: invalidationType,
		OperationContext: operationContext,
		AdditionalData:   additionalData,
	})
	m.invalidationEvents = pruneByAge(m.invalidationEvents, invalidationTimestamp, m.cutoff(), m.config.MaxMeasurements)

	m.totalInvalidations++
	m.totalKeysInvalidated += int64(keysInvalidated)
	m.mu.Unlock()

	m.metrics.IncrementCounterWithLabels("cache.invalidation.count", 1, map[string]string{
		"type": invalidationType,
	})
	m.metrics.IncrementCounterWithLabels("cache.invalidation.keys", float64(keysInvalidated), map[string]string{
		"type": invalidationType,
	})
}

// HitRate returns the cache hit rate as a percentage, 0.0 when no
// operations have been recorded.
func (m *PerformanceMonitor) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hitRateLocked()
}

func (m *PerformanceMonitor) hitRateLocked() float64 {
	if m.totalOperations == 0 {
		return 0.0
	}
	return float64(m.cacheHits) / float64(m.totalOperations) * 100
}

// ResetStats clears all sample lists and counters. Configuration, thresholds,
// and retention settings are preserved.
func (m *PerformanceMonitor) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keyGenerationTimes = nil
	m.cacheOperationTimes = nil
	m.compressionRatios = nil
	m.memoryUsageMeasurements = nil
	m.invalidationEvents = nil

	m.cacheHits = 0
	m.cacheMisses = 0
	m.totalOperations = 0
	m.totalInvalidations = 0
	m.totalKeysInvalidated = 0
}

// ExportMetrics returns every raw sample plus the aggregate counters. The
// result contains only plain values and round-trips through encoding/json.
func (m *PerformanceMonitor) ExportMetrics() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"key_generation_times":      append([]PerformanceMetric(nil), m.keyGenerationTimes...),
		"cache_operation_times":     append([]PerformanceMetric(nil), m.cacheOperationTimes...),
		"compression_ratios":        append([]CompressionMetric(nil), m.compressionRatios...),
		"memory_usage_measurements": append([]MemoryUsageMetric(nil), m.memoryUsageMeasurements...),
		"invalidation_events":       append([]InvalidationMetric(nil), m.invalidationEvents...),
		"cache_hits":                m.cacheHits,
		"cache_misses":              m.cacheMisses,
		"total_operations":          m.totalOperations,
		"total_invalidations":       m.totalInvalidations,
		"total_keys_invalidated":    m.totalKeysInvalidated,
		"export_timestamp":          time.Now().Format(time.RFC3339),
	}
}

// prune applies the retention policy to one timing sample list.
// Callers must hold m.mu.
func (m *PerformanceMonitor) prune(samples []PerformanceMetric) []PerformanceMetric {
	return pruneByAge(samples, performanceTimestamp, m.cutoff(), m.config.MaxMeasurements)
}

func (m *PerformanceMonitor) pruneAllLocked() {
	cutoff := m.cutoff()
	max := m.config.MaxMeasurements

	m.keyGenerationTimes = pruneByAge(m.keyGenerationTimes, performanceTimestamp, cutoff, max)
	m.cacheOperationTimes = pruneByAge(m.cacheOperationTimes, performanceTimestamp, cutoff, max)
	m.compressionRatios = pruneByAge(m.compressionRatios, compressionTimestamp, cutoff, max)
	m.memoryUsageMeasurements = pruneByAge(m.memoryUsageMeasurements, memoryTimestamp, cutoff, max)
	m.invalidationEvents = pruneByAge(m.invalidationEvents, invalidationTimestamp, cutoff, max)
}

func (m *PerformanceMonitor) cutoff() float64 {
	return unixNow() - m.config.RetentionPeriod.Seconds()
}

func performanceTimestamp(s PerformanceMetric) float64   { return s.Timestamp }
func compressionTimestamp(s CompressionMetric) float64   { return s.Timestamp }
func memoryTimestamp(s MemoryUsageMetric) float64        { return s.Timestamp }
func invalidationTimestamp(s InvalidationMetric) float64 { return s.Timestamp }

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func processMemoryMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.Alloc) / (1024 * 1024)
}

func int64Value(stats map[string]interface{}, key string) int64 {
	if stats == nil {
		return 0
	}
	switch v := stats[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
