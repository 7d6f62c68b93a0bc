// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryCache is a thread-safe in-memory cache. Counters are only shared
// within one process.
type MemoryCache struct {
	mu         sync.Mutex
	data       map[string]memoryEntry
	defaultTTL time.Duration
	maxSize    int
	stopCh     chan struct{}
	closed     bool
	now        func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // Maximum number of entries (0 = unlimited)
	CleanupInterval time.Duration // Interval for expired entry cleanup (0 = no cleanup)
}

// NewMemoryCache creates a new memory cache with the given options.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	c := &MemoryCache{
		data:       make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}

	if opts.CleanupInterval > 0 {
		go c.cleanupLoop(opts.CleanupInterval)
	}

	return c
}

func (c *MemoryCache) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

// live returns the entry for key if present and unexpired. Callers hold mu.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	e, ok := c.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

// put stores an entry, evicting expired entries first when full. Callers hold mu.
func (c *MemoryCache) put(key string, e memoryEntry) {
	if _, exists := c.data[key]; !exists && c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.removeExpiredLocked()
		if len(c.data) >= c.maxSize {
			// Still full: drop the entry closest to expiry.
			var victim string
			var soonest time.Time
			for k, v := range c.data {
				if victim == "" || v.expiresAt.Before(soonest) {
					victim, soonest = k, v.expiresAt
				}
			}
			delete(c.data, victim)
		}
	}
	c.data[key] = e
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCacheClosed
	}
	e, ok := c.live(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	c.put(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(c.ttl(ttl)),
	})
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCacheClosed
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// Incr implements Cache.
func (c *MemoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrCacheClosed
	}

	e, ok := c.live(key)
	if !ok {
		e = memoryEntry{expiresAt: c.now().Add(c.ttl(ttl))}
	}
	n, _ := strconv.ParseInt(string(e.value), 10, 64)
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	c.put(key, e)
	return n, nil
}

// Len returns the number of stored entries, including expired ones not yet
// removed.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.stopCh)
	}
	return nil
}

func (c *MemoryCache) removeExpiredLocked() {
	now := c.now()
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
		}
	}
}

// cleanupLoop periodically removes expired entries.
func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.removeExpiredLocked()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
