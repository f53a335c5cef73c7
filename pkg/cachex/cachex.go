// Package cachex holds the response cache backends used by the reservation
// client: an in-process TTL map and a Redis store for fleets of workers that
// want to share cached lookups.
package cachex

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// sweepEvery is how many writes pass between sweeps of expired entries.
const sweepEvery = 64

type entry struct {
	value  []byte
	expiry time.Time
}

// Memory is a process-local TTL cache. Values are copied on the way in and
// out so callers can never alias a cached body.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	writes  int
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !c.now().Before(e.expiry) {
		c.mu.Lock()
		// Re-check, a concurrent Set may have replaced it
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiry) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return bytes.Clone(e.value), true, nil
}

// Set stores value for ttl. A non-positive ttl stores nothing. Every
// sweepEvery writes, expired entries that were never read again are dropped.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes++
	if c.writes%sweepEvery == 0 {
		c.sweepLocked(now)
	}
	c.entries[key] = entry{value: bytes.Clone(value), expiry: now.Add(ttl)}
	return nil
}

func (c *Memory) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, k)
		}
	}
}

func (c *Memory) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
