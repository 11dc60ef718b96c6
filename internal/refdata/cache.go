package refdata

import (
	"sync"
	"time"
)

// Cache is a capacity- and TTL-bounded memo table for lookup results. It is
// injected into the lookup service rather than living in package globals, so
// its lifetime and size are explicit.
//
// Concurrent population of the same key is allowed: the last writer wins,
// which is harmless because lookups are idempotent and both writers store
// equivalent values.
type Cache[V any] struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	entries  map[string]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// NewCache builds a cache holding at most capacity entries for at most ttl.
// capacity <= 0 means unbounded; ttl <= 0 means entries never expire.
func NewCache[V any](capacity int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry[V]),
	}
}

// Get returns the cached value for key, treating expired entries as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have refreshed it.
		if cur, still := c.entries[key]; still && time.Since(cur.storedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry[V]{value: value, storedAt: time.Now()}
}

// Len returns the number of live entries, counting expired ones until they
// are lazily evicted by Get.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
