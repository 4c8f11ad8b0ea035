package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"proveit/clock"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a string-keyed read-through cache. Concurrent misses for the same
// key share a single load.
type TTL[V any] struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
}

func NewTTL[V any](c clock.Clock, ttl time.Duration) *TTL[V] {
	return &TTL[V]{clock: c, ttl: ttl, entries: make(map[string]entry[V])}
}

// Get returns the cached value for key, calling load on a miss or expiry.
// Failed loads are not cached.
func (c *TTL[V]) Get(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *TTL[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, expires: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

// Purge drops expired entries.
func (c *TTL[V]) Purge() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
