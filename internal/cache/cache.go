// Package cache provides a small in-process TTL cache.
//
// A Cache is an explicit object owned by whoever constructs it; there is no
// package-level state. Entries expire lazily on read and are purged in bulk
// when the cache reaches capacity.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps keys to values for a fixed TTL. The zero value is not usable;
// construct with [New]. A Cache with ttl <= 0 never stores anything.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	rows     map[K]entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

// New creates a cache. capacity <= 0 means 1024. now may be nil.
func New[K comparable, V any](ttl time.Duration, capacity int, now func() time.Time) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		rows:     make(map[K]entry[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
	}
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.rows[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.rows, key)
		c.evicts.Add(1)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Put stores value under key for the cache TTL.
func (c *Cache[K, V]) Put(key K, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.rows[key]; !exists && len(c.rows) >= c.capacity {
		c.purgeLocked(now)
	}
	c.rows[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Invalidate drops key. It reports whether an entry was present.
func (c *Cache[K, V]) Invalidate(key K) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rows[key]
	delete(c.rows, key)
	return ok
}

// Len reports the number of stored entries, including expired ones not yet purged.
func (c *Cache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

func (c *Cache[K, V]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Evictions: c.evicts.Load()}
}

// purgeLocked drops expired entries, then clears the map if it is still full.
func (c *Cache[K, V]) purgeLocked(now time.Time) {
	for k, e := range c.rows {
		if !now.Before(e.expiresAt) {
			delete(c.rows, k)
			c.evicts.Add(1)
		}
	}
	if len(c.rows) >= c.capacity {
		c.evicts.Add(uint64(len(c.rows)))
		clear(c.rows)
	}
}
