// SPDX-License-Identifier: MIT

// Package cache provides byte-value caches with TTL support, in memory or in Redis.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache stores opaque values with expiration.
type Cache interface {
	// Get returns the value for key, false if missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes key.
	Delete(ctx context.Context, key string)
	// Clear removes all values.
	Clear(ctx context.Context)
	// Stats returns cache statistics.
	Stats() Stats
	// Close releases background resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 // Successful Get operations
	Misses      int64 // Get operations that found nothing or an expired entry
	Sets        int64
	Evictions   int64 // Expired entries removed by the janitor
	CurrentSize int
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryCache is an in-process Cache with an optional cleanup goroutine.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	stats    counters
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryCache creates an in-memory cache. A positive cleanupInterval starts a
// janitor that removes expired entries; Close stops it.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired(c.now()) {
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	v := append([]byte(nil), value...)

	c.mu.Lock()
	c.entries[key] = &entry{value: v, expiration: c.now().Add(ttl)}
	c.mu.Unlock()
	c.stats.sets.Add(1)
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(size)
}

// Close stops the janitor and waits for it to exit.
func (c *MemoryCache) Close() error {
	if c.stop == nil {
		return nil
	}
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
	return nil
}

// deleteExpired removes expired entries and returns how many were removed.
func (c *MemoryCache) deleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.evictions.Add(int64(count))
	return count
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

type noOpCache struct{}

// NewNoOpCache creates a cache that stores nothing.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (noOpCache) Delete(context.Context, string) {}
func (noOpCache) Clear(context.Context) {}
func (noOpCache) Stats() Stats { return Stats{} }
func (noOpCache) Close() error { return nil }
