package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	seq        uint64
}

// Cache maps keys to values with optional lazy TTL expiry and a size cap.
// A zero ttl keeps entries until Clear; a zero maxEntries leaves size unbounded.
type Cache[V any] struct {
	mu         sync.Mutex
	items      map[string]entry[V]
	ttl        time.Duration
	maxEntries int
	seq        uint64
	now        func() time.Time
}

// New builds an empty cache.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{
		items:      map[string]entry[V]{},
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock swaps the time source, used by tests.
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the value for key unless it is missing or older than the TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(item, c.now()) {
		delete(c.items, key)
		return zero, false
	}
	return item.value, true
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.purgeExpired(now)
		if len(c.items) >= c.maxEntries {
			c.evictOldest()
		}
	}

	c.seq++
	c.items[key] = entry[V]{value: value, insertedAt: now, seq: c.seq}
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string]entry[V]{}
}

func (c *Cache[V]) expired(item entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(item.insertedAt) > c.ttl
}

func (c *Cache[V]) purgeExpired(now time.Time) {
	for key, item := range c.items {
		if c.expired(item, now) {
			delete(c.items, key)
		}
	}
}

func (c *Cache[V]) evictOldest() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for key, item := range c.items {
		if !found || item.seq < oldestSeq {
			oldestKey, oldestSeq, found = key, item.seq, true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}
