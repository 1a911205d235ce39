package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache windows per query kind.
const (
	IssuesFreshTTL   = 5 * time.Minute
	IssuesGCTTL      = 10 * time.Minute
	ProjectsFreshTTL = 10 * time.Minute
	ProjectsGCTTL    = 30 * time.Minute
)

// Cache holds remote results by content-addressed key.
// A fresh entry is served without a request; an expired one is kept until
// its gc window ends so it can still be shown while a refetch is in flight.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     any
	freshTill time.Time
	gcAt      time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Key derives a stable key from a query kind and its parameters.
// Parameters that encode to the same JSON share a key.
func Key(kind string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", params))
	}
	sum := sha256.Sum256(append([]byte(kind+"\x00"), data...))
	return kind + ":" + hex.EncodeToString(sum[:12])
}

// Get returns the value for key. fresh reports whether it is still inside its
// fresh window; ok is false when there is no usable entry.
func (c *Cache) Get(key string) (value any, fresh, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false, false
	}
	now := c.now()
	if !now.Before(e.gcAt) {
		return nil, false, false
	}
	return e.value, now.Before(e.freshTill), true
}

// Set stores value under key with the given windows. gcTTL shorter than
// freshTTL is raised to freshTTL.
func (c *Cache) Set(key string, value any, freshTTL, gcTTL time.Duration) {
	if gcTTL < freshTTL {
		gcTTL = freshTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &cacheEntry{
		value:     value,
		freshTill: now.Add(freshTTL),
		gcAt:      now.Add(gcTTL),
	}
	c.collectLocked(now)
}

// Invalidate removes key so the next query refetches.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries not yet collected.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collectLocked(c.now())
	return len(c.entries)
}

func (c *Cache) collectLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.gcAt) {
			delete(c.entries, k)
		}
	}
}

// cached returns the typed value for key, mirroring Get.
func cached[T any](c *Cache, key string) (v T, fresh, ok bool) {
	raw, fresh, ok := c.Get(key)
	if !ok {
		return v, false, false
	}
	v, ok = raw.(T)
	return v, fresh && ok, ok
}
