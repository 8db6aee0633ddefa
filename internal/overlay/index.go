package overlay

import (
	"github.com/peterstace/simplefeatures/geom"
	"github.com/tidwall/rtree"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/geometry"
)

// spatialIndex is an R-tree over region bounding boxes. Pairing every
// source against every target is quadratic in region count; the index
// reduces candidate pairs to those whose boxes actually overlap.
type spatialIndex struct {
	tree rtree.RTreeG[int]
}

// newSpatialIndex indexes the bounding boxes of the given regions.
// Regions with empty geometry are not indexed.
func newSpatialIndex(regions []domain.Region) *spatialIndex {
	idx := &spatialIndex{}
	for i, r := range regions {
		min, max, ok := geometry.Bounds(r.Geometry)
		if !ok {
			continue
		}
		idx.tree.Insert(min, max, i)
	}
	return idx
}

// candidates returns the indexes of regions whose bounding box
// overlaps the query geometry's bounding box. Order is unspecified;
// callers sort before clipping.
func (si *spatialIndex) candidates(g geom.Geometry) []int {
	min, max, ok := geometry.Bounds(g)
	if !ok {
		return nil
	}
	var out []int
	si.tree.Search(min, max, func(_, _ [2]float64, i int) bool {
		out = append(out, i)
		return true
	})
	return out
}
