// Package cache provides a generic in-memory TTL cache. It backs the
// in-memory dialogue state store and the role prompt cache.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// New creates a new in-memory cache with the given TTL. A background
// goroutine sweeps expired entries every TTL until Stop is called.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		done:  make(chan struct{}),
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

// Set stores a value in the cache with the configured TTL. Setting an
// existing key restarts its TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.Remove(key)
}

// Remove deletes key and reports whether a live entry was removed.
func (c *InMemory[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	delete(c.items, key)
	return ok && time.Now().Before(e.expiresAt)
}

// Values returns the live values in no particular order.
func (c *InMemory[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	out := make([]T, 0, len(c.items))
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			out = append(out, e.value)
		}
	}
	return out
}

// Len returns the number of live entries.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (c *InMemory[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]entry[T])
}

// Sweep removes expired entries now and returns how many were dropped.
func (c *InMemory[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Stop ends the background sweep. The cache stays usable.
func (c *InMemory[T]) Stop() {
	c.once.Do(func() { close(c.done) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
