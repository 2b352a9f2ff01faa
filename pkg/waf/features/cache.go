package features

import (
	"container/list"
	"sync"
)

// boundedCache is a fixed-capacity vector cache with oldest-first eviction.
// Insertion order, not access order: a burst of identical requests should hit
// the same entry until it ages out.
type boundedCache struct {
	mu      sync.Mutex
	cap     int
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key    string
	vector Vector
}

func newBoundedCache(capacity int) *boundedCache {
	return &boundedCache{
		cap:     capacity,
		entries: make(map[string]*list.Element, capacity),
		order:   list.New(),
	}
}

func (c *boundedCache) get(key string) (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		entry, ok := el.Value.(*cacheEntry)
		if !ok {
			return Vector{}, false
		}
		return entry.vector, true
	}
	return Vector{}, false
}

func (c *boundedCache) put(key string, v Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		if entry, ok := el.Value.(*cacheEntry); ok {
			entry.vector = v
		}
		return
	}

	for c.order.Len() >= c.cap {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		if entry, ok := oldest.Value.(*cacheEntry); ok {
			delete(c.entries, entry.key)
		}
		c.order.Remove(oldest)
	}

	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, vector: v})
}

func (c *boundedCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
