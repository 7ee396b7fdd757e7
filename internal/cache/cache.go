package cache

import (
	"context"
	"sync"
	"time"
)

// entry is one cached value with its write time and expiry window.
type entry struct {
	value     any
	timestamp time.Time
	ttl       time.Duration
}

// Cache is an in-process TTL key/value store. Expiry is lazy on read, with
// an optional periodic sweep for entries that are never read again. Process
// restart clears all state; that only costs redundant upstream fetches.
type Cache struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Set stores value under key with the given time-to-live.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, timestamp: c.now(), ttl: ttl}
}

// Get returns the value for key, or nil if absent or expired. An expired
// entry is evicted on the spot.
func (c *Cache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil
	}
	if c.now().Sub(item.timestamp) > item.ttl {
		delete(c.items, key)
		return nil
	}
	return item.value
}

// GetWithAge returns the value for key along with how long ago it was
// stored. The boolean is false when the key is absent or expired.
func (c *Cache) GetWithAge(key string) (any, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, 0, false
	}
	age := c.now().Sub(item.timestamp)
	if age > item.ttl {
		delete(c.items, key)
		return nil, 0, false
	}
	return item.value, age, true
}

// Has reports whether key holds an unexpired value.
func (c *Cache) Has(key string) bool {
	return c.Get(key) != nil
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

// Cleanup evicts every expired entry.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.Sub(item.timestamp) > item.ttl {
			delete(c.items, key)
		}
	}
}

// StartSweeper runs Cleanup every interval until ctx is done.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}
