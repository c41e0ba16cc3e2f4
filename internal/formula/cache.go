package formula

import "sync"

// DefaultCacheSize is the evaluator cache capacity when none is configured.
const DefaultCacheSize = 1000

// resultCache is a bounded memo of normalized series keyed by
// frame|formula|params_hash. When it exceeds capacity the oldest half of
// the entries, by insertion order, is evicted.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]float64
	order    []string
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &resultCache{
		capacity: capacity,
		entries:  make(map[string][]float64, capacity),
	}
}

// get returns a copy of the cached series.
func (c *resultCache) get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	y, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(y))
	copy(out, y)
	return out, true
}

// put stores a copy of y. Returns the number of evicted entries and the
// resulting size.
func (c *resultCache) put(key string, y []float64) (int, int) {
	stored := make([]float64, len(y))
	copy(stored, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = stored
		return 0, len(c.entries)
	}
	c.entries[key] = stored
	c.order = append(c.order, key)

	if len(c.entries) <= c.capacity {
		return 0, len(c.entries)
	}

	evict := len(c.order) / 2
	for _, k := range c.order[:evict] {
		delete(c.entries, k)
	}
	c.order = append([]string(nil), c.order[evict:]...)
	return evict, len(c.entries)
}

// len returns the number of cached entries.
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
