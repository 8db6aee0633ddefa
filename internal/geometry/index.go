package geometry

import (
	"sync"

	"github.com/tractwise/tractwise/internal/domain"
)

// RegionIndex is the normalized-geometry cache: a read-mostly,
// concurrency-safe map from region ID to its normalized region.
// Per-year workers share one index; nothing writes to it after the
// normalization phase.
type RegionIndex struct {
	mu      sync.RWMutex
	regions map[string]domain.Region
}

// BuildIndex creates an index over normalized regions.
func BuildIndex(regions []domain.Region) *RegionIndex {
	idx := &RegionIndex{regions: make(map[string]domain.Region, len(regions))}
	for _, r := range regions {
		idx.regions[r.ID] = r
	}
	return idx
}

// Get returns the region for an ID.
func (ri *RegionIndex) Get(id string) (domain.Region, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	r, ok := ri.regions[id]
	return r, ok
}

// Area returns the cached planar area for an ID.
func (ri *RegionIndex) Area(id string) (float64, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	r, ok := ri.regions[id]
	return r.Area, ok
}

// Add inserts or replaces a region.
func (ri *RegionIndex) Add(r domain.Region) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.regions[r.ID] = r
}

// Len returns the number of indexed regions.
func (ri *RegionIndex) Len() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.regions)
}
