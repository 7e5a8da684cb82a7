package poster

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache maps titles to poster URLs. A title cached with an empty URL is known
// to have no poster.
type Cache struct {
	c *ristretto.Cache[string, string]
}

// NewCache creates a cache holding roughly maxEntries titles.
func NewCache(maxEntries int64) (*Cache, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("poster cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Lookup reports the cached URL and whether title has been resolved at all.
func (c *Cache) Lookup(title string) (string, bool) {
	return c.c.Get(title)
}

// Poster returns the cached URL of title, or "".
func (c *Cache) Poster(title string) string {
	u, _ := c.c.Get(title)
	return u
}

// Set caches the URL of title. Writes become visible asynchronously.
func (c *Cache) Set(title, posterURL string) {
	c.c.Set(title, posterURL, 1)
}

// Wait blocks until pending writes are visible.
func (c *Cache) Wait() { c.c.Wait() }

// Close releases the cache.
func (c *Cache) Close() { c.c.Close() }
