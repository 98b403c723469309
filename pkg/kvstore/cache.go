package kvstore

import (
	"context"
	"sync"
	"time"
)

// Cached is a read-through cache over a Store, scoped to the lifetime of one
// running instance. A Set through the same instance refreshes the cached
// entry, so a read after a write never observes the pre-write value. It only
// cuts repeated round-trips; correctness never depends on it.
type Cached struct {
	inner Store

	mu     sync.RWMutex
	values map[string]string
	known  map[string]bool // key was looked up; value may be "absent"
	found  map[string]bool
}

func NewCached(inner Store) *Cached {
	return &Cached{
		inner:  inner,
		values: make(map[string]string),
		known:  make(map[string]bool),
		found:  make(map[string]bool),
	}
}

func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	if c.known[key] {
		v, f := c.values[key], c.found[key]
		c.mu.RUnlock()
		return v, f, nil
	}
	c.mu.RUnlock()

	v, found, err := c.inner.Get(ctx, key)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.known[key] = true
	c.found[key] = found
	c.values[key] = v
	c.mu.Unlock()
	return v, found, nil
}

// Ping always goes to the backing store, never the cache.
func (c *Cached) Ping(ctx context.Context) error {
	if p, ok := c.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	_, _, err := c.inner.Get(ctx, KeyRegistered)
	return err
}

func (c *Cached) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.inner.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	c.mu.Lock()
	if ttl > 0 {
		// expiring keys are not cached; the store owns their lifetime
		delete(c.values, key)
		delete(c.known, key)
		delete(c.found, key)
	} else {
		c.known[key] = true
		c.found[key] = true
		c.values[key] = value
	}
	c.mu.Unlock()
	return nil
}
