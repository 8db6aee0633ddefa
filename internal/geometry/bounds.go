package geometry

import (
	"github.com/peterstace/simplefeatures/geom"
)

// Bounds returns the axis-aligned bounding box of a geometry as
// min/max corners, in the form the spatial index consumes.
// ok is false for empty geometries.
func Bounds(g geom.Geometry) (min, max [2]float64, ok bool) {
	env := g.Envelope()
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return min, max, false
	}
	return [2]float64{lo.X, lo.Y}, [2]float64{hi.X, hi.Y}, true
}
