package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "textmesh_cache_operation_duration_seconds",
		Help:    "Duration of cache operations in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation", "status"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textmesh_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "textmesh_cache_misses_total",
		Help: "Total number of cache misses",
	})

	keyGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "textmesh_cache_key_generation_duration_seconds",
		Help:    "Duration of cache key generation in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"operation"})

	compressionRatio = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "textmesh_cache_compression_ratio",
		Help:    "Compression ratio (compressed/original) of stored payloads",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"operation"})

	memoryTotalBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "textmesh_cache_memory_bytes",
		Help: "Total bytes held across both cache tiers",
	})

	memoryEntryCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "textmesh_cache_entries",
		Help: "Total entries held across both cache tiers",
	})

	invalidationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textmesh_cache_invalidations_total",
		Help: "Total number of invalidation events",
	}, []string{"type"})

	invalidationKeys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "textmesh_cache_invalidated_keys_total",
		Help: "Total number of keys removed by invalidation",
	}, []string{"type"})
)

// PrometheusMetricsCollector implements observability.MetricsClient on top of
// promauto-registered collectors. Passing one to NewPerformanceMonitor makes
// every monitor recording visible on the default Prometheus registry.
type PrometheusMetricsCollector struct{}

// NewPrometheusMetricsCollector creates a Prometheus-backed metrics client
func NewPrometheusMetricsCollector() *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{}
}

// RecordCounter increments a named counter
func (p *PrometheusMetricsCollector) RecordCounter(name string, value float64, labels map[string]string) {
	p.IncrementCounterWithLabels(name, value, labels)
}

// RecordGauge sets a named gauge
func (p *PrometheusMetricsCollector) RecordGauge(name string, value float64, labels map[string]string) {
	switch name {
	case "cache.memory.total_bytes":
		memoryTotalBytes.Set(value)
	case "cache.memory.entry_count":
		memoryEntryCount.Set(value)
	}
}

// RecordHistogram observes a named histogram sample
func (p *PrometheusMetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	operation := labels["operation"]

	switch name {
	case "cache.key_generation.duration":
		keyGenerationDuration.WithLabelValues(operation).Observe(value)
	case "cache.compression.ratio":
		compressionRatio.WithLabelValues(operation).Observe(value)
	}
}

// RecordTimer observes a duration as a histogram sample
func (p *PrometheusMetricsCollector) RecordTimer(name string, duration time.Duration, labels map[string]string) {
	p.RecordHistogram(name, duration.Seconds(), labels)
}

// RecordCacheOperation records the outcome and latency of one cache operation
func (p *PrometheusMetricsCollector) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
	status := "miss"
	if success {
		status = "hit"
	}
	cacheOperationDuration.WithLabelValues(operation, status).Observe(durationSeconds)

	if operation == "get" {
		if success {
			cacheHits.Inc()
		} else {
			cacheMisses.Inc()
		}
	}
}

// IncrementCounter increments a named counter without labels
func (p *PrometheusMetricsCollector) IncrementCounter(name string, value float64) {
	p.IncrementCounterWithLabels(name, value, nil)
}

// IncrementCounterWithLabels increments a named counter with labels
func (p *PrometheusMetricsCollector) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	invalidationType := labels["type"]
	if invalidationType == "" {
		invalidationType = InvalidationTypeManual
	}

	switch name {
	case "cache.invalidation.count":
		invalidationCount.WithLabelValues(invalidationType).Add(value)
	case "cache.invalidation.keys":
		invalidationKeys.WithLabelValues(invalidationType).Add(value)
	}
}

// Close implements observability.MetricsClient; Prometheus collectors need no cleanup
func (p *PrometheusMetricsCollector) Close() error {
	return nil
}
