// Package cache provides the in-memory TTL cache that holds child lists the
// services already loaded, keyed by parent.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type tombstone struct {
	gen uint64
	at  time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
//
// Every Delete advances a generation clock and leaves a tombstone, so a
// refill that started before the Delete can be refused by SetIfFresh.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once

	clock      uint64
	tombstones map[string]tombstone
	// floor is the newest generation whose tombstone was swept.
	floor uint64
}

// New creates a new in-memory cache with the given TTL and starts the
// background sweeper. Call Stop to end it.
func New[T any](ttl time.Duration) *InMemory[T] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &InMemory[T]{
		items:      make(map[string]entry[T]),
		ttl:        ttl,
		stop:       make(chan struct{}),
		tombstones: make(map[string]tombstone),
	}
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Generation returns the current invalidation clock. Read it before loading
// the value that will be passed to SetIfFresh.
func (c *InMemory[T]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clock
}

// SetIfFresh stores value only if key was not deleted after gen was read.
// It reports whether the value was stored.
func (c *InMemory[T]) SetIfFresh(key string, value T, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.floor {
		return false
	}
	if t, ok := c.tombstones[key]; ok && t.gen > gen {
		return false
	}
	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	return true
}

// Delete removes a value from the cache and invalidates refills in flight.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.tombstones[key] = tombstone{gen: c.clock, at: time.Now()}
	delete(c.items, key)
}

// Len returns the number of entries, expired ones included until swept.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop ends the background sweeper. Safe to call more than once.
func (c *InMemory[T]) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemory[T]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k, t := range c.tombstones {
		if now.Sub(t.at) > c.ttl {
			if t.gen > c.floor {
				c.floor = t.gen
			}
			delete(c.tombstones, k)
		}
	}
}
