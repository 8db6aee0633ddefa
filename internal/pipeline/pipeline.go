// Package pipeline chains the processing stages end to end:
// normalize, overlay, allocate per census year, aggregate, align.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tractwise/tractwise/internal/aggregate"
	"github.com/tractwise/tractwise/internal/allocate"
	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
	"github.com/tractwise/tractwise/internal/geometry"
	"github.com/tractwise/tractwise/internal/overlay"
	"github.com/tractwise/tractwise/internal/timeseries"
)

// Options configures a run.
type Options struct {
	TargetCRS       int
	Mode            domain.OverlayMode
	SliverThreshold float64
	// Workers caps concurrent per-year allocation. Zero means one
	// worker per year.
	Workers     int
	DropUndated bool
	SkipInvalid bool
	Metrics     []domain.RatioMetric
}

// Input bundles everything a run consumes.
type Input struct {
	Sources    []domain.Region
	Targets    []domain.Region
	Snapshots  *domain.SnapshotSet
	EventYears map[string]int
}

// Result is a run's output plus its report.
type Result struct {
	Series []domain.TimeSeriesRecord
	Status []aggregate.StatusRecord
	Report *Report
}

// Pipeline wires the stage engines together.
type Pipeline struct {
	normalizer *geometry.Normalizer
	overlay    *overlay.Engine
	allocator  *allocate.Engine
	aligner    *timeseries.Aligner
	logger     *slog.Logger
}

// New creates a pipeline.
func New(normalizer *geometry.Normalizer, ov *overlay.Engine, al *allocate.Engine, ts *timeseries.Aligner, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		overlay:    ov,
		allocator:  al,
		aligner:    ts,
		logger:     logger,
	}
}

// Run executes the full pipeline. The overlay is computed once;
// allocation then runs per census year, concurrently up to Workers,
// since years share the slice geometry but nothing else. Output order
// is deterministic regardless of worker interleaving because per-year
// results are collected by year index and aggregation sorts.
func (p *Pipeline) Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	start := time.Now()
	report := &Report{
		Mode:      opts.Mode.String(),
		TargetCRS: opts.TargetCRS,
		Sources:   len(in.Sources),
		Targets:   len(in.Targets),
	}

	if in.Snapshots == nil || in.Snapshots.Len() == 0 {
		return nil, errors.Validation("no attribute snapshots to allocate")
	}

	sources, err := p.normalizer.Normalize(in.Sources, opts.TargetCRS)
	if err != nil {
		return nil, err
	}
	targets, err := p.normalizer.Normalize(in.Targets, opts.TargetCRS)
	if err != nil {
		return nil, err
	}
	index := geometry.BuildIndex(sources)

	slices, overlayStats, err := p.overlay.Run(sources, targets, overlay.Options{
		Mode:            opts.Mode,
		SliverThreshold: opts.SliverThreshold,
		SkipInvalid:     opts.SkipInvalid,
	})
	if err != nil {
		return nil, err
	}
	report.addOverlay(len(slices), overlayStats)

	// Snapshot rows for regions missing from the boundary file can
	// never be allocated; count them so a mismatched extract is
	// visible in the report instead of silently shrinking totals.
	for _, id := range in.Snapshots.RegionIDs() {
		if _, ok := index.Get(id); !ok {
			report.OrphanSnapshots++
		}
	}

	years := in.Snapshots.Years()
	perYear := make([][]domain.AllocatedRecord, len(years))
	perYearStats := make([]*allocate.Stats, len(years))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.logger.Debug("allocating year",
				"year", year,
				"snapshots", in.Snapshots.CountForYear(year),
			)
			records, stats, err := p.allocator.Run(slices, in.Snapshots, year, index)
			if err != nil {
				return err
			}
			perYear[i] = records
			perYearStats[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var allocated []domain.AllocatedRecord
	for i := range years {
		allocated = append(allocated, perYear[i]...)
		report.addAllocation(perYearStats[i])
	}

	aggregated := aggregate.Sum(allocated)
	series, alignStats := p.aligner.Align(aggregated, in.EventYears, timeseries.Options{
		DropUndated: opts.DropUndated,
		Metrics:     opts.Metrics,
	})
	report.addAlignment(len(series), alignStats)
	report.Duration = time.Since(start)

	p.logger.Info("pipeline complete",
		"years", len(years),
		"slices", len(slices),
		"rows", len(series),
		"duration", report.Duration,
	)

	return &Result{
		Series: series,
		Status: aggregate.ByStatus(aggregated),
		Report: report,
	}, nil
}
