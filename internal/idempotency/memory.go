package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	result    []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with TTL eviction. It is the default
// backend for single-instance deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, orderID, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(orderID, key)]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, cacheKey(orderID, key))
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, orderID, key string, result []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(orderID, key)] = memoryEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
	// Opportunistic sweep keeps the map from accumulating dead entries on
	// long-running processes.
	if len(c.entries)%256 == 0 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	return nil
}
