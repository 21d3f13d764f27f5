// Package cache holds pages fetched during one run so a URL requested twice
// under the same mode is fetched once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// entry holds a cached page with its creation timestamp.
type entry struct {
	page      models.PageResult
	createdAt time.Time
}

// Cache is a bounded in-memory page cache.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
	hits       int
}

// New creates a Cache holding at most maxEntries pages, each valid for
// maxAge. maxAge <= 0 means entries never expire within the run.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

// Key generates a cache key from the URL and the fetch mode.
func Key(url string, mode models.FetchMode) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(mode.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached page. Returns the page and whether it was a hit.
func (c *Cache) Get(key string) (models.PageResult, bool) {
	if c == nil {
		return models.PageResult{}, false
	}
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return models.PageResult{}, false
	}
	if c.maxAge > 0 && time.Since(e.createdAt) > c.maxAge {
		return models.PageResult{}, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.page, true
}

// Set stores a successful page. Failed pages are not cached so a later
// request retries them. At capacity the oldest entry is evicted.
func (c *Cache) Set(key string, page models.PageResult) {
	if c == nil || !page.OK {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{
		page:      page,
		createdAt: time.Now(),
	}
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Hits returns how many lookups were served from the cache.
func (c *Cache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}
