// Package assets handles source image loading and caching.
package assets

import (
	"fmt"
	"image"
	"os"
	"sync"
)

// Manager loads source images from disk and keeps them decoded in memory
// so repeated rebuilds of the same sprite sheet skip decoding.
type Manager struct {
	cache *Cache
	mu    sync.Mutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// LoadImage returns the decoded image at path as NRGBA.
func (m *Manager) LoadImage(path string) (*image.NRGBA, error) {
	if img, ok := m.cache.Get(path); ok {
		return img, nil
	}

	// Serialize misses so concurrent callers decode a file once.
	m.mu.Lock()
	defer m.mu.Unlock()

	if img, ok := m.cache.Peek(path); ok {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	img, err := DecodeImage(data, path)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}

	m.cache.Set(path, img)
	return img, nil
}

// Invalidate drops a cached image, e.g. after the file changed on disk.
func (m *Manager) Invalidate(path string) {
	m.cache.Delete(path)
}

// Close releases all cached images.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache of decoded images.
type Cache struct {
	data map[string]*image.NRGBA
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*image.NRGBA),
	}
}

// Get retrieves an item from cache and records a hit or miss.
func (c *Cache) Get(key string) (*image.NRGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return img, ok
}

// Peek retrieves an item without touching the statistics.
func (c *Cache) Peek(key string) (*image.NRGBA, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.data[key]
	return img, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, img *image.NRGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = img
}

// Delete removes an item from cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*image.NRGBA)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
