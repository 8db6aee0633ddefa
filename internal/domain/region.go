// Package domain defines the core entities of the areal interpolation
// pipeline: regions, attribute snapshots, overlay slices, and the
// allocated/aggregated records derived from them.
package domain

import (
	"github.com/peterstace/simplefeatures/geom"
)

// Unmatched is the sentinel identifier for area not covered by any
// region on the other side of an overlay. It is a valid group key:
// population outside every historic district aggregates under it.
const Unmatched = "NA"

// OverlayMode selects how the overlay engine treats area covered by
// only one of the two partitions.
type OverlayMode int

const (
	// ModeIntersection keeps only area covered by both partitions.
	ModeIntersection OverlayMode = iota
	// ModeUnion also retains area covered by exactly one partition,
	// tagged with the Unmatched sentinel on the uncovered side.
	ModeUnion
)

// String returns a human-readable mode name.
func (m OverlayMode) String() string {
	switch m {
	case ModeIntersection:
		return "intersection"
	case ModeUnion:
		return "union"
	default:
		return "unknown"
	}
}

// ParseOverlayMode converts a config string to an OverlayMode.
// Unrecognized values fall back to intersection.
func ParseOverlayMode(s string) OverlayMode {
	if s == "union" {
		return ModeUnion
	}
	return ModeIntersection
}

// Region is one polygon of a partition: a census tract (source side)
// or a historic district (target side).
//
// Geometry is immutable for the lifetime of the region. Area is the
// cached planar area in the units of CRS, computed by the normalizer;
// it is zero until the region has been normalized.
type Region struct {
	ID       string
	Geometry geom.Geometry
	CRS      int // EPSG code of Geometry's coordinates
	Area     float64

	// Attributes holds single-snapshot attribute values attached
	// directly to the region. Multi-year values live in a SnapshotSet
	// instead.
	Attributes map[string]float64

	// EventYear is the year the studied regulatory event (historic
	// designation) took effect for a target region. Nil means the
	// region has no recorded event year; it is never defaulted to 0.
	EventYear *int
}

// HasEvent reports whether the region has a recorded event year.
func (r *Region) HasEvent() bool {
	return r.EventYear != nil
}

// WithEventYear returns a copy of the region with the event year set.
func (r Region) WithEventYear(year int) Region {
	r.EventYear = &year
	return r
}

// Slice is an atomic piece of an overlay: the part of one source
// region that falls inside one target region (or inside no target,
// in which case TargetID is Unmatched; or inside no source, in which
// case SourceID is Unmatched).
//
// Slices reference their parents only by identifier. Their geometry
// is an independently owned, derived artifact.
type Slice struct {
	Geometry geom.Geometry
	SourceID string
	TargetID string
	Area     float64
}

// RatioMetric defines a derived percentage column:
// 100 × Numerator / Denominator, NaN when the denominator is zero.
type RatioMetric struct {
	Name        string
	Numerator   string
	Denominator string
}
