package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/text-mesh/text-mesh/pkg/cache/monitoring"
	"github.com/text-mesh/text-mesh/pkg/observability"
)

func setupTestCache(t *testing.T) (*AIResponseCache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()
	config.ConnectTimeout = time.Second

	cache, err := NewAIResponseCache(config, nil, observability.NewNoopLogger())
	require.NoError(t, err)

	cleanup := func() {
		_ = cache.Close()
		mr.Close()
	}
	return cache, mr, cleanup
}

func TestNewAIResponseCache(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		cache, err := NewAIResponseCache(nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().MemoryCacheSize, cache.config.MemoryCacheSize)
		assert.NotNil(t, cache.monitor)
	})

	t.Run("zero fields are filled before validation", func(t *testing.T) {
		cache, err := NewAIResponseCache(&Config{RedisURL: "redis://somewhere:6379"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, cache.config.CompressionLevel)
	})

	t.Run("invalid compression level", func(t *testing.T) {
		config := DefaultConfig()
		config.CompressionLevel = 10

		_, err := NewAIResponseCache(config, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("non-increasing text size tiers", func(t *testing.T) {
		config := DefaultConfig()
		config.TextSizeTiers = TextSizeTiers{Small: 500, Medium: 500, Large: 50000}

		_, err := NewAIResponseCache(config, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestTextTier(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()

	cases := []struct {
		length int
		tier   string
	}{
		{0, TierSmall},
		{499, TierSmall},
		{500, TierMedium},
		{4999, TierMedium},
		{5000, TierLarge},
		{49999, TierLarge},
		{50000, TierXLarge},
		{50001, TierXLarge},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tier, cache.textTier(tc.length), "length %d", tc.length)
	}
}

func TestCacheResponseAndGet(t *testing.T) {
	t.Run("round trip with metadata", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		// Medium-length text so the lookup goes through Redis.
		text := strings.Repeat("a", 600)
		response := map[string]interface{}{"summary": "a short summary"}

		cache.CacheResponse(ctx, text, "summarize", nil, "", response)

		got, found := cache.GetCachedResponse(ctx, text, "summarize", nil, "")
		require.True(t, found)
		assert.Equal(t, "a short summary", got["summary"])
		assert.Equal(t, true, got["cache_hit"])
		assert.Equal(t, float64(600), got["text_length"])
		assert.Equal(t, false, got["compression_used"])
		assert.NotEmpty(t, got["cached_at"])
	})

	t.Run("end to end with options", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		options := map[string]interface{}{"max_length": 50}
		cache.CacheResponse(ctx, "The quick brown fox", "summarize", options, "", map[string]interface{}{"result": "A fox summary"})

		got, found := cache.GetCachedResponse(ctx, "The quick brown fox", "summarize", options, "")
		require.True(t, found)
		assert.Equal(t, "A fox summary", got["result"])
		assert.Equal(t, true, got["cache_hit"])
	})

	t.Run("miss for unknown key", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()

		_, found := cache.GetCachedResponse(context.Background(), "never cached", "summarize", nil, "")
		assert.False(t, found)
	})

	t.Run("different options are distinct entries", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()
		text := strings.Repeat("b", 600)

		cache.CacheResponse(ctx, text, "summarize", map[string]interface{}{"max_length": 50}, "", map[string]interface{}{"summary": "short"})

		_, found := cache.GetCachedResponse(ctx, text, "summarize", map[string]interface{}{"max_length": 100}, "")
		assert.False(t, found)

		got, found := cache.GetCachedResponse(ctx, text, "summarize", map[string]interface{}{"max_length": 50}, "")
		require.True(t, found)
		assert.Equal(t, "short", got["summary"])
	})

	t.Run("large payloads are stored compressed", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		text := strings.Repeat("c", 600)
		response := map[string]interface{}{"summary": strings.Repeat("repetitive filler text ", 200)}

		cache.CacheResponse(ctx, text, "summarize", nil, "", response)

		key := cache.keygen.GenerateCacheKey(text, "summarize", nil, "")
		stored, err := mr.Get(key)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored, "compressed:"))

		got, found := cache.GetCachedResponse(ctx, text, "summarize", nil, "")
		require.True(t, found)
		assert.Equal(t, response["summary"], got["summary"])
		assert.Equal(t, true, got["compression_used"])

		// The compression metric is measured against the response as the
		// caller handed it over, before cache metadata is added.
		serialized, err := json.Marshal(response)
		require.NoError(t, err)

		stats := cache.PerformanceSummary()
		compression := stats["compression"].(map[string]interface{})
		assert.Equal(t, int64(len(serialized)), compression["total_bytes_processed"])
	})

	t.Run("entries expire by operation TTL", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		text := strings.Repeat("d", 600)
		cache.CacheResponse(ctx, text, "qa", nil, "why?", map[string]interface{}{"answer": "because"})

		_, found := cache.GetCachedResponse(ctx, text, "qa", nil, "why?")
		require.True(t, found)

		// Default qa TTL is 30 minutes.
		mr.FastForward(31 * time.Minute)

		_, found = cache.GetCachedResponse(ctx, text, "qa", nil, "why?")
		assert.False(t, found)
	})

	t.Run("legacy plain JSON entries are readable", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		text := strings.Repeat("e", 600)
		key := cache.keygen.GenerateCacheKey(text, "sentiment", nil, "")
		require.NoError(t, mr.Set(key, `{"sentiment":"neutral","score":0.5}`))

		got, found := cache.GetCachedResponse(ctx, text, "sentiment", nil, "")
		require.True(t, found)
		assert.Equal(t, "neutral", got["sentiment"])
	})

	t.Run("corrupt entries are treated as misses", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		text := strings.Repeat("f", 600)
		key := cache.keygen.GenerateCacheKey(text, "sentiment", nil, "")
		require.NoError(t, mr.Set(key, "compressed:garbage"))

		_, found := cache.GetCachedResponse(ctx, text, "sentiment", nil, "")
		assert.False(t, found)
	})
}

func TestMemoryTier(t *testing.T) {
	t.Run("writes never populate the memory tier", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		cache.CacheResponse(ctx, "small text", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
		assert.Equal(t, 0, cache.memory.Len())
	})

	t.Run("store hit for a small text populates the memory tier", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		cache.CacheResponse(ctx, "small text", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})

		_, found := cache.GetCachedResponse(ctx, "small text", "sentiment", nil, "")
		require.True(t, found)
		require.Equal(t, 1, cache.memory.Len())

		// Once populated, the memory tier serves the key on its own.
		mr.Close()

		got, found := cache.GetCachedResponse(ctx, "small text", "sentiment", nil, "")
		require.True(t, found)
		assert.Equal(t, "positive", got["sentiment"])
	})

	t.Run("medium texts never populate the memory tier", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		text := strings.Repeat("g", 600)
		cache.CacheResponse(ctx, text, "sentiment", nil, "", map[string]interface{}{"sentiment": "negative"})

		_, found := cache.GetCachedResponse(ctx, text, "sentiment", nil, "")
		require.True(t, found)
		assert.Equal(t, 0, cache.memory.Len())
	})

	t.Run("store hit repopulates the memory tier after a clear", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		cache.CacheResponse(ctx, "tiny", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})

		_, found := cache.GetCachedResponse(ctx, "tiny", "sentiment", nil, "")
		require.True(t, found)
		cache.InvalidateMemoryCache("test")
		require.Equal(t, 0, cache.memory.Len())

		_, found = cache.GetCachedResponse(ctx, "tiny", "sentiment", nil, "")
		require.True(t, found)
		assert.Equal(t, 1, cache.memory.Len())
	})
}

func TestGracefulDegradation(t *testing.T) {
	newDisconnectedCache := func(t *testing.T) *AIResponseCache {
		t.Helper()
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		config := DefaultConfig()
		config.RedisURL = "redis://" + addr
		config.ConnectTimeout = 100 * time.Millisecond

		cache, err := NewAIResponseCache(config, nil, observability.NewNoopLogger())
		require.NoError(t, err)
		return cache
	}

	t.Run("connect reports why the store is unreachable", func(t *testing.T) {
		cache := newDisconnectedCache(t)
		err := cache.Connect(context.Background())
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})

	t.Run("reads miss and writes are dropped", func(t *testing.T) {
		cache := newDisconnectedCache(t)
		ctx := context.Background()

		text := strings.Repeat("h", 600)
		cache.CacheResponse(ctx, text, "summarize", nil, "", map[string]interface{}{"summary": "lost"})

		_, found := cache.GetCachedResponse(ctx, text, "summarize", nil, "")
		assert.False(t, found)

		stats := cache.PerformanceSummary()
		assert.Equal(t, int64(1), stats["cache_misses"])
	})

	t.Run("a down store is indistinguishable from a cold cache", func(t *testing.T) {
		cache := newDisconnectedCache(t)
		ctx := context.Background()

		// A dropped write for a small text must not leak into the memory
		// tier: the following read misses just like on a cold cache.
		cache.CacheResponse(ctx, "small", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
		assert.Equal(t, 0, cache.memory.Len())

		_, found := cache.GetCachedResponse(ctx, "small", "sentiment", nil, "")
		assert.False(t, found)
	})

	t.Run("invalidation reports storage unavailable", func(t *testing.T) {
		cache := newDisconnectedCache(t)

		_, err := cache.InvalidateAll(context.Background(), "test")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestInvalidation(t *testing.T) {
	seed := func(t *testing.T, cache *AIResponseCache) {
		t.Helper()
		ctx := context.Background()
		text := strings.Repeat("i", 600)
		cache.CacheResponse(ctx, text, "summarize", nil, "", map[string]interface{}{"summary": "s"})
		cache.CacheResponse(ctx, text, "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
		cache.CacheResponse(ctx, text, "qa", nil, "why?", map[string]interface{}{"answer": "because"})
	}

	t.Run("by operation", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		seed(t, cache)
		ctx := context.Background()

		removed, err := cache.InvalidateByOperation(ctx, "summarize", "test")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		text := strings.Repeat("i", 600)
		_, found := cache.GetCachedResponse(ctx, text, "summarize", nil, "")
		assert.False(t, found)
		_, found = cache.GetCachedResponse(ctx, text, "sentiment", nil, "")
		assert.True(t, found)
	})

	t.Run("all", func(t *testing.T) {
		cache, mr, cleanup := setupTestCache(t)
		defer cleanup()
		seed(t, cache)

		removed, err := cache.InvalidateAll(context.Background(), "test")
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		assert.Empty(t, mr.Keys())
	})

	t.Run("zero matches is not an error", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()

		removed, err := cache.InvalidatePattern(context.Background(), "op:nothing", "test")
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})

	t.Run("events are recorded", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		seed(t, cache)

		_, err := cache.InvalidateByOperation(context.Background(), "qa", "cleanup")
		require.NoError(t, err)

		stats := cache.InvalidationFrequencyStats()
		assert.Equal(t, int64(1), stats["total_invalidations"])
		assert.Equal(t, int64(1), stats["total_keys_invalidated"])
	})

	t.Run("memory tier only", func(t *testing.T) {
		cache, _, cleanup := setupTestCache(t)
		defer cleanup()
		ctx := context.Background()

		cache.CacheResponse(ctx, "one", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
		cache.CacheResponse(ctx, "two", "sentiment", nil, "", map[string]interface{}{"sentiment": "negative"})

		// Reads pull both small-text entries into the memory tier.
		_, found := cache.GetCachedResponse(ctx, "one", "sentiment", nil, "")
		require.True(t, found)
		_, found = cache.GetCachedResponse(ctx, "two", "sentiment", nil, "")
		require.True(t, found)
		require.Equal(t, 2, cache.memory.Len())

		removed := cache.InvalidateMemoryCache("test")
		assert.Equal(t, 2, removed)
		assert.Equal(t, 0, cache.memory.Len())

		// Redis copies survive.
		_, found = cache.GetCachedResponse(ctx, "one", "sentiment", nil, "")
		assert.True(t, found)
	})
}

func TestCacheStats(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	cache.CacheResponse(ctx, "small", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
	text := strings.Repeat("j", 600)
	cache.CacheResponse(ctx, text, "summarize", nil, "", map[string]interface{}{"summary": "s"})

	// Pull the small-text entry into the memory tier.
	_, found := cache.GetCachedResponse(ctx, "small", "sentiment", nil, "")
	require.True(t, found)

	stats := cache.CacheStats(ctx)

	redisStats := stats["redis"].(map[string]interface{})
	assert.Equal(t, "connected", redisStats["status"])
	assert.Equal(t, int64(2), redisStats["keys"])

	memoryStats := stats["memory"].(map[string]interface{})
	assert.Equal(t, 1, memoryStats["memory_cache_entries"])
	assert.Equal(t, DefaultConfig().MemoryCacheSize, memoryStats["memory_cache_size_limit"])
	assert.InDelta(t, 1.0, memoryStats["memory_cache_utilization"].(float64), 0.001)

	performance := stats["performance"].(map[string]interface{})
	assert.Contains(t, performance, "cache_hit_rate")

	// CacheStats feeds the monitor a memory snapshot.
	assert.NotEmpty(t, cache.MemoryUsageStats())
}

func TestCacheStatsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	config := DefaultConfig()
	config.RedisURL = "redis://" + addr
	config.ConnectTimeout = 100 * time.Millisecond

	cache, err := NewAIResponseCache(config, nil, observability.NewNoopLogger())
	require.NoError(t, err)

	stats := cache.CacheStats(context.Background())
	redisStats := stats["redis"].(map[string]interface{})
	assert.Equal(t, "unavailable", redisStats["status"])
	assert.Equal(t, int64(0), redisStats["keys"])
}

func TestCacheHitRatio(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	text := strings.Repeat("k", 600)
	cache.CacheResponse(ctx, text, "summarize", nil, "", map[string]interface{}{"summary": "s"})

	_, found := cache.GetCachedResponse(ctx, text, "summarize", nil, "")
	require.True(t, found)
	_, found = cache.GetCachedResponse(ctx, "never stored text that is definitely missing", "summarize", nil, "")
	require.False(t, found)

	// 1 hit, 1 miss, plus the set operation: 1/3 of all operations.
	assert.InDelta(t, 100.0/3.0, cache.CacheHitRatio(), 0.001)
}

func TestResetPerformanceStats(t *testing.T) {
	cache, _, cleanup := setupTestCache(t)
	defer cleanup()
	ctx := context.Background()

	cache.CacheResponse(ctx, "small", "sentiment", nil, "", map[string]interface{}{"sentiment": "positive"})
	cache.GetCachedResponse(ctx, "small", "sentiment", nil, "")

	cache.ResetPerformanceStats()

	stats := cache.PerformanceSummary()
	assert.Equal(t, int64(0), stats["total_cache_operations"])
	assert.Equal(t, 0.0, stats["cache_hit_rate"])
}

func TestCustomMonitor(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	monitor := monitoring.NewPerformanceMonitor(nil, observability.NewNoopLogger(), nil)
	config := DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()

	cache, err := NewAIResponseCache(config, monitor, observability.NewNoopLogger())
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	cache.GetCachedResponse(context.Background(), "text", "summarize", nil, "")
	assert.Same(t, monitor, cache.Monitor())
	assert.Equal(t, int64(1), monitor.PerformanceStats()["cache_misses"])
}
