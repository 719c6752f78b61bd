package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// CachedRender represents a cached markdown render
type CachedRender struct {
	HTML      string
	Timestamp time.Time
}

// Key generates a cache key from markdown source
func Key(source string) string {
	h := sha256.New()
	h.Write([]byte(source))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RenderCache memoizes markdown renders by content hash. Entries beyond
// maxEntries evict the oldest.
type RenderCache struct {
	mu         sync.Mutex
	entries    map[string]CachedRender
	maxEntries int
}

// NewRenderCache creates a cache holding at most maxEntries renders
func NewRenderCache(maxEntries int) *RenderCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &RenderCache{
		entries:    make(map[string]CachedRender),
		maxEntries: maxEntries,
	}
}

// Load returns the cached HTML for source
func (c *RenderCache) Load(source string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[Key(source)]
	return entry.HTML, ok
}

// Store caches the HTML rendered for source
func (c *RenderCache) Store(source, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.Timestamp.Before(oldest) {
				oldestKey, oldest = k, e.Timestamp
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[Key(source)] = CachedRender{HTML: html, Timestamp: time.Now()}
}

// Len returns the number of cached renders
func (c *RenderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
