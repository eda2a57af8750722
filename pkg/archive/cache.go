package archive

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes opened archives by path. Lookups are serialized by a
// single mutex, and concurrent opens of the same path are collapsed into
// one header decode by a singleflight group.
type Cache struct {
	mu       sync.Mutex
	archives map[string]*Archive
	group    singleflight.Group
}

func NewCache() *Cache {
	return &Cache{archives: make(map[string]*Archive)}
}

// Open returns the cached archive for path, decoding its header on first
// use.
func (c *Cache) Open(path string) (*Archive, error) {
	c.mu.Lock()
	if a, ok := c.archives[path]; ok {
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		// Re-check under the flight: a prior flight may have populated
		// the entry after our lookup missed.
		c.mu.Lock()
		if a, ok := c.archives[path]; ok {
			c.mu.Unlock()
			return a, nil
		}
		c.mu.Unlock()

		a, err := readHeader(path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.archives[path] = a
		c.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Archive), nil
}

// Uncache drops the cached archive for path. Unknown paths are a no-op.
func (c *Cache) Uncache(path string) {
	c.mu.Lock()
	delete(c.archives, path)
	c.mu.Unlock()
}

// UncacheAll drops every cached archive.
func (c *Cache) UncacheAll() {
	c.mu.Lock()
	c.archives = make(map[string]*Archive)
	c.mu.Unlock()
}

var defaultCache = NewCache()

// Open opens path through the process-wide cache.
func Open(path string) (*Archive, error) {
	return defaultCache.Open(path)
}

// Uncache removes path from the process-wide cache.
func Uncache(path string) {
	defaultCache.Uncache(path)
}

// UncacheAll clears the process-wide cache.
func UncacheAll() {
	defaultCache.UncacheAll()
}
