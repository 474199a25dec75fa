package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	entry := func(id string) map[string]interface{} {
		return map[string]interface{}{"id": id}
	}

	t.Run("get and set", func(t *testing.T) {
		c := newMemoryCache(10)
		assert.Nil(t, c.Get("missing"))

		c.Set("k", entry("v"), 100)
		got := c.Get("k")
		require.NotNil(t, got)
		assert.Equal(t, "v", got["id"])
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(100), c.SizeBytes())
	})

	t.Run("fifo eviction at capacity", func(t *testing.T) {
		c := newMemoryCache(2)
		c.Set("a", entry("a"), 10)
		c.Set("b", entry("b"), 10)
		c.Set("c", entry("c"), 10)

		assert.Nil(t, c.Get("a"))
		assert.NotNil(t, c.Get("b"))
		assert.NotNil(t, c.Get("c"))
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, int64(20), c.SizeBytes())
	})

	t.Run("rewrite moves key to back of eviction queue", func(t *testing.T) {
		c := newMemoryCache(3)
		c.Set("a", entry("a"), 10)
		c.Set("b", entry("b1"), 10)
		c.Set("c", entry("c"), 10)

		// Rewriting b makes a the oldest entry again.
		c.Set("b", entry("b2"), 15)
		c.Set("d", entry("d"), 10)

		assert.Nil(t, c.Get("a"))
		assert.NotNil(t, c.Get("c"))
		assert.NotNil(t, c.Get("d"))

		b := c.Get("b")
		require.NotNil(t, b)
		assert.Equal(t, "b2", b["id"])
		assert.Equal(t, int64(35), c.SizeBytes())
	})

	t.Run("rewrite then insert at capacity two", func(t *testing.T) {
		c := newMemoryCache(2)
		c.Set("a", entry("a"), 10)
		c.Set("b", entry("b"), 10)
		c.Set("c", entry("c"), 10)

		// {b, c} remain; rewriting b moves it behind c.
		c.Set("b", entry("b2"), 10)
		c.Set("d", entry("d"), 10)

		assert.Nil(t, c.Get("c"))
		assert.NotNil(t, c.Get("b"))
		assert.NotNil(t, c.Get("d"))
	})

	t.Run("reads do not affect eviction order", func(t *testing.T) {
		c := newMemoryCache(2)
		c.Set("a", entry("a"), 10)
		c.Set("b", entry("b"), 10)

		// Reading a does not save it: insertion order decides.
		_ = c.Get("a")
		c.Set("c", entry("c"), 10)

		assert.Nil(t, c.Get("a"))
		assert.NotNil(t, c.Get("b"))
	})

	t.Run("delete", func(t *testing.T) {
		c := newMemoryCache(5)
		c.Set("a", entry("a"), 10)

		assert.True(t, c.Delete("a"))
		assert.False(t, c.Delete("a"))
		assert.Nil(t, c.Get("a"))
		assert.Equal(t, int64(0), c.SizeBytes())
	})

	t.Run("clear", func(t *testing.T) {
		c := newMemoryCache(10)
		for i := 0; i < 5; i++ {
			c.Set(fmt.Sprintf("k%d", i), entry("v"), 10)
		}

		assert.Equal(t, 5, c.Clear())
		assert.Equal(t, 0, c.Len())
		assert.Equal(t, int64(0), c.SizeBytes())
		assert.Equal(t, 0, c.Clear())

		// Still usable after a clear.
		c.Set("again", entry("v"), 10)
		assert.Equal(t, 1, c.Len())
	})
}
