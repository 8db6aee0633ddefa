// Package overlay computes the planar overlay of two region
// partitions, producing atomic slices tagged with the source and
// target region they came from.
//
// Polygon clipping is delegated to simplefeatures' set operations;
// intersection math is never hand-rolled here. The engine's own job
// is candidate pairing, deterministic ordering, sliver suppression,
// and the bookkeeping that keeps every excluded scrap countable.
package overlay

import (
	"log/slog"
	"sort"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// Options configures an overlay run.
type Options struct {
	// Mode selects intersection or union semantics.
	Mode domain.OverlayMode
	// SliverThreshold is the minimum area a slice must have to be
	// kept. Boundary misalignment between partitions produces
	// near-zero floating point slivers; anything below the threshold
	// is suppressed and counted.
	SliverThreshold float64
	// SkipInvalid turns a malformed polygon into a logged skip
	// instead of aborting the run. The polygon is never repaired:
	// repair silently changes its area.
	SkipInvalid bool
}

// Stats counts everything the overlay excluded or flagged. The
// contract for the output table is that no exclusion is ever silent.
type Stats struct {
	CandidatePairs    int
	SuppressedSlivers int
	SkippedInvalid    int
	UnmatchedSource   int // source slices with no covering target (union mode)
	UnmatchedTarget   int // target slices with no covering source (union mode)
}

// Engine computes overlays.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an overlay engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run overlays sources against targets.
//
// Each source region is clipped against its candidate targets in
// ascending target-ID order, and each clip removes the claimed part
// from the source's remaining geometry. Two invariants fall out of
// this construction: the areas of a source's slices can never sum to
// more than the source's area, and any point lying exactly on a
// shared boundary is claimed by the lower target ID.
//
// Slices are never merged, even when adjacent with equal tags;
// aggregation is the caller's job. In union mode the part of a source
// covered by no target (and vice versa) is emitted with the Unmatched
// sentinel rather than dropped.
func (e *Engine) Run(sources, targets []domain.Region, opts Options) ([]domain.Slice, *Stats, error) {
	stats := &Stats{}

	sources, err := e.checkGeometries(sources, opts, stats)
	if err != nil {
		return nil, nil, err
	}
	targets, err = e.checkGeometries(targets, opts, stats)
	if err != nil {
		return nil, nil, err
	}

	targetIndex := newSpatialIndex(targets)

	var slices []domain.Slice
	for _, src := range sources {
		srcSlices, err := e.clipSource(src, targets, targetIndex, opts, stats)
		if err != nil {
			return nil, nil, err
		}
		slices = append(slices, srcSlices...)
	}

	if opts.Mode == domain.ModeUnion {
		sourceIndex := newSpatialIndex(sources)
		for _, tgt := range targets {
			slice, ok, err := e.uncoveredTarget(tgt, sources, sourceIndex, opts, stats)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				slices = append(slices, slice)
			}
		}
	}

	e.logger.Info("overlay complete",
		"mode", opts.Mode.String(),
		"sources", len(sources),
		"targets", len(targets),
		"slices", len(slices),
		"candidate_pairs", stats.CandidatePairs,
		"suppressed_slivers", stats.SuppressedSlivers,
	)
	return slices, stats, nil
}

// clipSource cuts one source region into slices, one per covering
// target, plus an optional unmatched remainder in union mode.
func (e *Engine) clipSource(src domain.Region, targets []domain.Region, idx *spatialIndex, opts Options, stats *Stats) ([]domain.Slice, error) {
	candidates := idx.candidates(src.Geometry)
	// Ascending target ID: the clip order is the tie-break.
	sort.Slice(candidates, func(i, j int) bool {
		return targets[candidates[i]].ID < targets[candidates[j]].ID
	})
	stats.CandidatePairs += len(candidates)

	var slices []domain.Slice
	remaining := src.Geometry

	for _, ci := range candidates {
		if remaining.IsEmpty() {
			break
		}
		tgt := targets[ci]

		part, err := geom.Intersection(remaining, tgt.Geometry)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeGeometry, "intersect source %s with target %s", src.ID, tgt.ID)
		}
		if !part.IsEmpty() {
			if area := part.Area(); area >= opts.SliverThreshold {
				slices = append(slices, domain.Slice{
					Geometry: part,
					SourceID: src.ID,
					TargetID: tgt.ID,
					Area:     area,
				})
			} else if area > 0 {
				stats.SuppressedSlivers++
			}
		}

		remaining, err = geom.Difference(remaining, tgt.Geometry)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeGeometry, "subtract target %s from source %s", tgt.ID, src.ID)
		}
	}

	if opts.Mode == domain.ModeUnion && !remaining.IsEmpty() {
		if area := remaining.Area(); area >= opts.SliverThreshold {
			slices = append(slices, domain.Slice{
				Geometry: remaining,
				SourceID: src.ID,
				TargetID: domain.Unmatched,
				Area:     area,
			})
			stats.UnmatchedSource++
		} else if area > 0 {
			stats.SuppressedSlivers++
		}
	}

	return slices, nil
}

// uncoveredTarget returns the part of a target covered by no source,
// tagged with the unmatched sentinel on the source side.
func (e *Engine) uncoveredTarget(tgt domain.Region, sources []domain.Region, idx *spatialIndex, opts Options, stats *Stats) (domain.Slice, bool, error) {
	remaining := tgt.Geometry
	candidates := idx.candidates(tgt.Geometry)
	sort.Slice(candidates, func(i, j int) bool {
		return sources[candidates[i]].ID < sources[candidates[j]].ID
	})

	for _, ci := range candidates {
		if remaining.IsEmpty() {
			break
		}
		src := sources[ci]
		var err error
		remaining, err = geom.Difference(remaining, src.Geometry)
		if err != nil {
			return domain.Slice{}, false, errors.Wrapf(err, errors.CodeGeometry, "subtract source %s from target %s", src.ID, tgt.ID)
		}
	}

	if remaining.IsEmpty() {
		return domain.Slice{}, false, nil
	}
	area := remaining.Area()
	if area < opts.SliverThreshold {
		if area > 0 {
			stats.SuppressedSlivers++
		}
		return domain.Slice{}, false, nil
	}

	stats.UnmatchedTarget++
	return domain.Slice{
		Geometry: remaining,
		SourceID: domain.Unmatched,
		TargetID: tgt.ID,
		Area:     area,
	}, true, nil
}

// checkGeometries validates every region's polygon. Malformed
// geometry aborts the run unless SkipInvalid is set, in which case
// the region is dropped from the overlay and counted.
func (e *Engine) checkGeometries(regions []domain.Region, opts Options, stats *Stats) ([]domain.Region, error) {
	valid := regions
	filtered := false

	for i, r := range regions {
		if err := r.Geometry.Validate(); err != nil {
			if !opts.SkipInvalid {
				return nil, errors.Wrapf(err, errors.CodeGeometry, "region %s has malformed geometry", r.ID)
			}
			e.logger.Warn("skipping region with malformed geometry",
				"region", r.ID,
				"error", err,
			)
			stats.SkippedInvalid++
			if !filtered {
				valid = append([]domain.Region{}, regions[:i]...)
				filtered = true
			}
			continue
		}
		if filtered {
			valid = append(valid, r)
		}
	}
	return valid, nil
}
