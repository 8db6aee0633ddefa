package pipeline

import (
	"log/slog"
	"time"

	"github.com/tractwise/tractwise/internal/allocate"
	"github.com/tractwise/tractwise/internal/overlay"
	"github.com/tractwise/tractwise/internal/timeseries"
)

// Report accounts for everything a run produced, suppressed, or
// skipped. Every exclusion in any stage surfaces here; nothing is
// dropped silently.
type Report struct {
	Mode      string
	TargetCRS int

	Sources int
	Targets int
	Slices  int

	CandidatePairs    int
	SuppressedSlivers int
	SkippedInvalid    int
	UnmatchedSources  int
	UnmatchedTargets  int

	Allocated        int
	FromAttributes   int
	MissingSnapshots int
	DegenerateAreas  int
	OrphanSnapshots  int // snapshot regions absent from the source boundary file

	Rows        int
	Undated     int
	DroppedRows int
	NullMetrics int

	Duration time.Duration
}

func (r *Report) addOverlay(slices int, stats *overlay.Stats) {
	r.Slices = slices
	r.CandidatePairs = stats.CandidatePairs
	r.SuppressedSlivers = stats.SuppressedSlivers
	r.SkippedInvalid = stats.SkippedInvalid
	r.UnmatchedSources = stats.UnmatchedSource
	r.UnmatchedTargets = stats.UnmatchedTarget
}

func (r *Report) addAllocation(stats *allocate.Stats) {
	r.Allocated += stats.Allocated
	r.FromAttributes += stats.FromAttributes
	r.MissingSnapshots += stats.MissingSnapshots
	r.DegenerateAreas += stats.DegenerateAreas
}

func (r *Report) addAlignment(rows int, stats *timeseries.Stats) {
	r.Rows = rows
	r.Undated = stats.Undated
	r.DroppedRows = stats.DroppedRows
	r.NullMetrics = stats.NullMetrics
}

// Log writes the report as one structured line.
func (r *Report) Log(logger *slog.Logger) {
	logger.Info("run report",
		"mode", r.Mode,
		"target_crs", r.TargetCRS,
		"sources", r.Sources,
		"targets", r.Targets,
		"slices", r.Slices,
		"suppressed_slivers", r.SuppressedSlivers,
		"skipped_invalid", r.SkippedInvalid,
		"unmatched_sources", r.UnmatchedSources,
		"unmatched_targets", r.UnmatchedTargets,
		"from_attributes", r.FromAttributes,
		"missing_snapshots", r.MissingSnapshots,
		"degenerate_areas", r.DegenerateAreas,
		"orphan_snapshots", r.OrphanSnapshots,
		"rows", r.Rows,
		"undated", r.Undated,
		"dropped_rows", r.DroppedRows,
		"null_metrics", r.NullMetrics,
		"duration", r.Duration,
	)
}
