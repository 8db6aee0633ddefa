// Package timeseries aligns aggregated records onto an event-relative
// time axis and derives ratio metrics.
package timeseries

import (
	"log/slog"
	"math"
	"sort"

	"github.com/tractwise/tractwise/internal/domain"
)

// Options configures alignment.
type Options struct {
	// DropUndated removes records for targets with no event year
	// instead of carrying them with a null offset.
	DropUndated bool
	// Metrics are the ratio columns to derive for every row.
	Metrics []domain.RatioMetric
}

// Stats counts what alignment touched.
type Stats struct {
	Aligned     int
	Undated     int // rows for targets with no event year
	DroppedRows int // undated rows removed under DropUndated
	NullMetrics int // metric cells that came out NaN
}

// Aligner turns aggregated records into event-relative time series.
type Aligner struct {
	logger *slog.Logger
}

// NewAligner creates an aligner.
func NewAligner(logger *slog.Logger) *Aligner {
	return &Aligner{logger: logger}
}

// Align computes, for every record whose target has an event year,
// the signed offset year − eventYear. Targets absent from eventYears
// (the unmatched sentinel always is) keep their rows with a null
// offset unless DropUndated is set; their counts are real even when
// their timeline is not.
//
// Each ratio metric is evaluated as 100 × numerator / denominator
// over the record's values. A zero or missing denominator yields NaN,
// never a division panic and never a silent zero; exporters render
// NaN as an empty cell.
//
// Output is ordered by target ID then year. Align never mutates its
// input records.
func (a *Aligner) Align(records []domain.AggregatedRecord, eventYears map[string]int, opts Options) ([]domain.TimeSeriesRecord, *Stats) {
	stats := &Stats{}
	out := make([]domain.TimeSeriesRecord, 0, len(records))

	for _, r := range records {
		var offset *int
		if event, ok := eventYears[r.TargetID]; ok {
			d := r.Year - event
			offset = &d
		} else {
			stats.Undated++
			if opts.DropUndated {
				stats.DroppedRows++
				continue
			}
		}

		rec := domain.TimeSeriesRecord{
			TargetID:        r.TargetID,
			Year:            r.Year,
			YearsSinceEvent: offset,
			Values:          r.CloneValues(),
		}

		if len(opts.Metrics) > 0 {
			rec.Metrics = make(map[string]float64, len(opts.Metrics))
			for _, m := range opts.Metrics {
				v := ratio(rec.Values, m)
				if math.IsNaN(v) {
					stats.NullMetrics++
				}
				rec.Metrics[m.Name] = v
			}
		}

		out = append(out, rec)
		stats.Aligned++
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Year < out[j].Year
	})

	a.logger.Info("time series aligned",
		"rows", len(out),
		"undated", stats.Undated,
		"dropped", stats.DroppedRows,
	)
	return out, stats
}

func ratio(values map[string]float64, m domain.RatioMetric) float64 {
	den, ok := values[m.Denominator]
	if !ok || den == 0 {
		return math.NaN()
	}
	num := values[m.Numerator]
	return 100 * num / den
}
