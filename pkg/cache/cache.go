package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/text-mesh/text-mesh/pkg/cache/monitoring"
	"github.com/text-mesh/text-mesh/pkg/observability"
)

// AIResponseCache caches AI operation responses across two tiers: a small
// in-process FIFO tier for responses to small texts, and Redis for
// everything. The cache degrades gracefully: when Redis is unreachable every
// read is a miss and every write is dropped, and callers never see an error
// from the cache path.
//
// All methods are safe for concurrent use.
type AIResponseCache struct {
	config  *Config
	logger  observability.Logger
	monitor *monitoring.PerformanceMonitor
	keygen  *KeyGenerator
	memory  *memoryCache

	mu     sync.Mutex
	client *redis.Client
}

// NewAIResponseCache creates a cache from the given configuration. A nil
// config uses DefaultConfig; zero-valued fields are filled from defaults
// before validation. The monitor and logger are optional.
//
// The constructor does not touch the network; the first operation (or an
// explicit Connect call) establishes the Redis connection.
func NewAIResponseCache(config *Config, monitor *monitoring.PerformanceMonitor, logger observability.Logger) (*AIResponseCache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = observability.NewLogger("cache")
	}
	if monitor == nil {
		monitor = monitoring.NewPerformanceMonitor(nil, logger.WithPrefix("monitoring"), nil)
	}

	return &AIResponseCache{
		config:  config,
		logger:  logger,
		monitor: monitor,
		keygen:  NewKeyGenerator(config.TextHashThreshold, monitor),
		memory:  newMemoryCache(config.MemoryCacheSize),
	}, nil
}

// Connect establishes the Redis connection. Calling it when already
// connected is a no-op. The returned error says why the store is unreachable
// and wraps ErrStorageUnavailable; the cache itself keeps operating in
// degraded mode either way, and later operations retry the connection.
func (c *AIResponseCache) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	opts, err := redis.ParseURL(c.config.RedisURL)
	if err != nil {
		c.logger.Warn("Invalid Redis URL, cache running in degraded mode", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("%w: parse redis url: %v", ErrStorageUnavailable, err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		c.logger.Warn("Redis unavailable, cache running in degraded mode", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("%w: ping: %v", ErrStorageUnavailable, err)
	}

	c.client = client
	c.logger.Info("Connected to Redis cache", map[string]interface{}{
		"url": c.config.RedisURL,
	})
	return nil
}

// Close releases the Redis connection. The in-memory tier is left intact.
func (c *AIResponseCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// redisClient returns the connected client, attempting a connection first
// when there is none. Returns nil when Redis is unreachable.
func (c *AIResponseCache) redisClient(ctx context.Context) *redis.Client {
	if err := c.Connect(ctx); err != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// GetCachedResponse looks up the cached response for one request tuple.
// The second return value reports whether a response was found. Lookups for
// small texts consult the in-memory tier before Redis; a Redis hit for a
// small text repopulates the memory tier.
//
// Failures along the way (connection loss, corrupt payloads) are recorded as
// misses, never surfaced as errors.
func (c *AIResponseCache) GetCachedResponse(ctx context.Context, text, operation string, options map[string]interface{}, question string) (map[string]interface{}, bool) {
	ctx, span := observability.StartSpan(ctx, "cache.get")
	defer span.End()

	start := time.Now()
	key := c.keygen.GenerateCacheKey(text, operation, options, question)
	tier := c.textTier(len(text))

	span.SetAttribute("cache.operation", operation)
	span.SetAttribute("cache.text_tier", tier)

	if tier == TierSmall {
		if payload := c.memory.Get(key); payload != nil {
			c.monitor.RecordCacheOperationTime("get", time.Since(start), true, len(text), map[string]interface{}{
				"cache_tier": "memory",
				"operation":  operation,
			})
			span.SetAttribute("cache.hit", true)
			return payload, true
		}
	}

	client := c.redisClient(ctx)
	if client == nil {
		c.recordMiss(start, operation, len(text), "redis_connection_failed")
		span.SetAttribute("cache.hit", false)
		return nil, false
	}

	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.recordMiss(start, operation, len(text), "key_not_found")
		span.SetAttribute("cache.hit", false)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Redis read failed", map[string]interface{}{
			"error":     err.Error(),
			"operation": operation,
		})
		c.recordMiss(start, operation, len(text), "redis_error")
		span.RecordError(err)
		span.SetAttribute("cache.hit", false)
		return nil, false
	}

	payload, err := decompressData(data)
	if err != nil {
		c.logger.Warn("Discarding undecodable cache entry", map[string]interface{}{
			"error":     err.Error(),
			"operation": operation,
		})
		c.recordMiss(start, operation, len(text), "decode_failed")
		span.RecordError(err)
		span.SetAttribute("cache.hit", false)
		return nil, false
	}

	if tier == TierSmall {
		c.memory.Set(key, payload, int64(len(data)))
	}

	c.monitor.RecordCacheOperationTime("get", time.Since(start), true, len(text), map[string]interface{}{
		"cache_tier": "redis",
		"operation":  operation,
	})
	span.SetAttribute("cache.hit", true)
	return payload, true
}

// CacheResponse stores a response for one request tuple. The stored payload
// is the response augmented with cache metadata (cached_at, cache_hit,
// text_length, compression_used) so a later hit is self-describing. Writes
// are best-effort: failures are logged and recorded, never returned.
func (c *AIResponseCache) CacheResponse(ctx context.Context, text, operation string, options map[string]interface{}, question string, response map[string]interface{}) {
	ctx, span := observability.StartSpan(ctx, "cache.set")
	defer span.End()

	start := time.Now()

	span.SetAttribute("cache.operation", operation)

	// A down store makes the write a no-op: the memory tier is only ever
	// populated from a store hit on the read path, so a dropped write stays
	// invisible everywhere.
	client := c.redisClient(ctx)
	if client == nil {
		c.monitor.RecordCacheOperationTime("set", time.Since(start), false, len(text), map[string]interface{}{
			"operation": operation,
			"reason":    "redis_connection_failed",
		})
		return
	}

	key := c.keygen.GenerateCacheKey(text, operation, options, question)
	span.SetAttribute("cache.text_tier", c.textTier(len(text)))

	// The original (pre-metadata) size decides the compression_used flag and
	// is what the compression ratio is measured against.
	originalSize := 0
	if serialized, err := json.Marshal(response); err == nil {
		originalSize = len(serialized)
	}

	payload := make(map[string]interface{}, len(response)+4)
	for k, v := range response {
		payload[k] = v
	}
	payload["cached_at"] = time.Now().Format(time.RFC3339)
	payload["cache_hit"] = true
	payload["text_length"] = len(text)
	payload["compression_used"] = originalSize > c.config.CompressionThreshold

	data, compressed, _, compressTime, err := compressData(payload, c.config.CompressionThreshold, c.config.CompressionLevel)
	if err != nil {
		c.logger.Warn("Failed to encode cache payload", map[string]interface{}{
			"error":     err.Error(),
			"operation": operation,
		})
		c.monitor.RecordCacheOperationTime("set", time.Since(start), false, len(text), map[string]interface{}{
			"operation": operation,
			"reason":    "encode_failed",
		})
		span.RecordError(err)
		return
	}
	if compressed {
		c.monitor.RecordCompressionRatio(originalSize, len(data), compressTime, operation)
	}

	ttl := c.config.operationTTL(operation)
	if err := client.SetEX(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Redis write failed", map[string]interface{}{
			"error":     err.Error(),
			"operation": operation,
		})
		c.monitor.RecordCacheOperationTime("set", time.Since(start), false, len(text), map[string]interface{}{
			"operation": operation,
			"reason":    "redis_error",
		})
		span.RecordError(err)
		return
	}

	c.monitor.RecordCacheOperationTime("set", time.Since(start), true, len(text), map[string]interface{}{
		"operation":  operation,
		"compressed": compressed,
		"ttl":        ttl.String(),
	})
}

// Monitor exposes the cache's performance monitor
func (c *AIResponseCache) Monitor() *monitoring.PerformanceMonitor {
	return c.monitor
}

// textTier classifies a text by length against the configured boundaries
func (c *AIResponseCache) textTier(length int) string {
	tiers := c.config.TextSizeTiers
	switch {
	case length < tiers.Small:
		return TierSmall
	case length < tiers.Medium:
		return TierMedium
	case length < tiers.Large:
		return TierLarge
	default:
		return TierXLarge
	}
}

func (c *AIResponseCache) recordMiss(start time.Time, operation string, textLength int, reason string) {
	c.monitor.RecordCacheOperationTime("get", time.Since(start), false, textLength, map[string]interface{}{
		"operation": operation,
		"reason":    reason,
	})
}
