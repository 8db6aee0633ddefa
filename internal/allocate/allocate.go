// Package allocate distributes source-region attribute counts onto
// overlay slices in proportion to area.
//
// The only assumption made is uniform density: a slice holding 37% of
// a tract's area receives 37% of every count the tract reports. That
// assumption is wrong at the margins and is the standard one for
// areal interpolation without ancillary data; it is stated here once
// so nobody mistakes the output for block-level truth.
package allocate

import (
	"log/slog"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/geometry"
)

// Stats counts slices the allocator had to pass over.
type Stats struct {
	Allocated        int
	FromAttributes   int // slices allocated from boundary-file properties
	MissingSnapshots int // slices whose source has no attribute row for the year
	DegenerateAreas  int // slices whose source area is zero or unknown
}

// Engine allocates snapshot values onto slices.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an allocation engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run produces one allocated record per slice for the given year.
//
// The weight for a slice is its area divided by the full area of its
// source region, taken from the index rather than re-summed from the
// slices so that intersection-mode runs (where slices may not cover
// the source) still scale against the whole region. Weights are
// applied to every attribute in the source's snapshot.
//
// Slices tagged with the unmatched sentinel on the source side carry
// no attributes and are skipped. A source with no snapshot for the
// year falls back to the numeric properties carried on its boundary
// feature, the single-observation case where counts ride in the
// GeoJSON itself. When neither exists, or the source area is
// degenerate, the slice loses to a counted skip rather than an abort:
// one bad tract should not sink a county.
func (e *Engine) Run(slices []domain.Slice, snapshots *domain.SnapshotSet, year int, index *geometry.RegionIndex) ([]domain.AllocatedRecord, *Stats, error) {
	stats := &Stats{}
	records := make([]domain.AllocatedRecord, 0, len(slices))

	for _, s := range slices {
		if s.SourceID == domain.Unmatched {
			continue
		}

		values, fromAttrs, ok := e.sourceValues(snapshots, s.SourceID, year, index)
		if !ok {
			stats.MissingSnapshots++
			e.logger.Debug("no attribute values for source region",
				"source", s.SourceID,
				"year", year,
			)
			continue
		}

		srcArea, ok := index.Area(s.SourceID)
		if !ok || srcArea <= 0 {
			stats.DegenerateAreas++
			e.logger.Warn("source region has degenerate area",
				"source", s.SourceID,
				"year", year,
			)
			continue
		}

		weight := s.Area / srcArea
		weighted := make(map[string]float64, len(values))
		for name, v := range values {
			weighted[name] = v * weight
		}

		records = append(records, domain.AllocatedRecord{
			SourceID: s.SourceID,
			TargetID: s.TargetID,
			Year:     year,
			Values:   weighted,
		})
		stats.Allocated++
		if fromAttrs {
			stats.FromAttributes++
		}
	}

	return records, stats, nil
}

// sourceValues resolves the counts to spread for a source region in a
// year: the snapshot when one exists, otherwise the region's own
// numeric boundary properties.
func (e *Engine) sourceValues(snapshots *domain.SnapshotSet, sourceID string, year int, index *geometry.RegionIndex) (map[string]float64, bool, bool) {
	if snap, ok := snapshots.Get(sourceID, year); ok {
		return snap.Values, false, true
	}
	if region, ok := index.Get(sourceID); ok && len(region.Attributes) > 0 {
		return region.Attributes, true, true
	}
	return nil, false, false
}
