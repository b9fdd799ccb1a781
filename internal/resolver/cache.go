package resolver

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache memoizes resolve responses keyed by input URL. It is
// advisory only: entries may be evicted or lost on restart at any time,
// and it is never consulted for billing or token validity. TTL and the
// time source are injected so expiry is testable.
type ResultCache[V any] struct {
	lru *lru.Cache[string, cacheEntry[V]]
	ttl time.Duration
	now func() time.Time
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// NewResultCache creates a bounded TTL cache. now may be nil, defaulting
// to time.Now.
func NewResultCache[V any](size int, ttl time.Duration, now func() time.Time) (*ResultCache[V], error) {
	inner, err := lru.New[string, cacheEntry[V]](size)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &ResultCache[V]{lru: inner, ttl: ttl, now: now}, nil
}

// Get returns the cached value for key when present and unexpired.
// Expired entries are evicted on access.
func (c *ResultCache[V]) Get(key string) (V, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value for key, stamping it with the current time.
func (c *ResultCache[V]) Set(key string, value V) {
	c.lru.Add(key, cacheEntry[V]{value: value, storedAt: c.now()})
}

// Len reports the number of live and expired-but-unevicted entries.
func (c *ResultCache[V]) Len() int {
	return c.lru.Len()
}
