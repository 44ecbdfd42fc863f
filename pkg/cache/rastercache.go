// Package cache provides a fixed-capacity cache of rendered slice rasters.
// Entries are evicted in insertion order once the capacity is exceeded, and
// the whole cache is dropped when the window settings change, since every
// cached raster was rendered under the old settings.
package cache

import (
	"sync"

	"dicomview3d/internal/models"
)

// DefaultCapacity is the number of rendered slices retained.
const DefaultCapacity = 30

// RasterCache is a bounded slice-index -> raster cache. It is safe for
// concurrent use; both Put and Get copy the raster so callers may mutate
// or discard their side freely.
type RasterCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[int]*models.Raster

	// order records insertion order for FIFO eviction.
	order []int

	// Statistics
	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache with the given capacity. Non-positive capacities
// fall back to DefaultCapacity.
func New(capacity int) *RasterCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RasterCache{
		capacity: capacity,
		entries:  make(map[int]*models.Raster, capacity),
	}
}

// Get returns a copy of the cached raster for the slice index, or false if
// none is cached.
func (c *RasterCache) Get(sliceIndex int) (*models.Raster, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[sliceIndex]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return r.Clone(), true
}

// Put stores an owned copy of the raster under the slice index, evicting
// the oldest entry if the cache is over capacity. Re-inserting an existing
// index replaces its raster without refreshing its eviction position.
func (c *RasterCache) Put(sliceIndex int, r *models.Raster) {
	if r.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sliceIndex]; !exists {
		c.order = append(c.order, sliceIndex)
	}
	c.entries[sliceIndex] = r.Clone()

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.evictions++
	}
}

// InvalidateAll releases every entry and empties the insertion queue.
func (c *RasterCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]*models.Raster, c.capacity)
	c.order = c.order[:0]
}

// Len returns the number of cached entries.
func (c *RasterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit, miss and eviction counters.
func (c *RasterCache) Stats() (hits, misses, evictions uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}
