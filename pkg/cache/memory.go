package cache

import "sync"

// memoryCache is the in-process cache tier: a fixed-capacity FIFO map used
// to serve small-text lookups without a network round trip. Insertion order
// decides eviction; re-writing an existing key moves it to the back of the
// queue, so the oldest write is always evicted first.
type memoryCache struct {
	mu        sync.Mutex
	entries   map[string]map[string]interface{}
	order     []string
	capacity  int
	sizeBytes int64
	sizes     map[string]int64
}

func newMemoryCache(capacity int) *memoryCache {
	return &memoryCache{
		entries:  make(map[string]map[string]interface{}),
		sizes:    make(map[string]int64),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Get returns the cached payload for key, or nil when absent. Lookups do not
// affect eviction order.
func (c *memoryCache) Get(key string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Set stores a payload under key, evicting the oldest entry when at capacity.
// Rewriting an existing key moves it to the back of the eviction queue.
func (c *memoryCache) Set(key string, value map[string]interface{}, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeFromOrder(key)
		c.sizeBytes -= c.sizes[key]
	} else if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.sizeBytes -= c.sizes[oldest]
		delete(c.entries, oldest)
		delete(c.sizes, oldest)
	}

	c.entries[key] = value
	c.sizes[key] = sizeBytes
	c.sizeBytes += sizeBytes
	c.order = append(c.order, key)
}

// Delete removes key if present and reports whether it was there
func (c *memoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		return false
	}
	c.removeFromOrder(key)
	c.sizeBytes -= c.sizes[key]
	delete(c.entries, key)
	delete(c.sizes, key)
	return true
}

// Clear empties the tier and returns how many entries were removed
func (c *memoryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]map[string]interface{})
	c.sizes = make(map[string]int64)
	c.order = c.order[:0]
	c.sizeBytes = 0
	return removed
}

func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *memoryCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeBytes
}

// removeFromOrder drops key from the eviction queue. Callers hold c.mu.
func (c *memoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
