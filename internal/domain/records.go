package domain

// AllocatedRecord is one slice's share of its source region's
// attributes at one observation year:
//
//	value = source value × (slice area / source area)
//
// Under the uniform-density assumption the allocated values of all
// slices of a source sum back to the source's original values,
// provided the target partition fully covers the source.
type AllocatedRecord struct {
	SourceID string
	TargetID string
	Year     int
	Values   map[string]float64
}

// AggregatedRecord is the summed allocation for one (target, year)
// pair. It is created once by the aggregation engine and never
// mutated afterwards.
type AggregatedRecord struct {
	TargetID string
	Year     int
	Values   map[string]float64
}

// CloneValues returns a copy of the record's value map.
func (r AggregatedRecord) CloneValues() map[string]float64 {
	out := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}

// TimeSeriesRecord is the terminal output row: an AggregatedRecord
// plus the target's relative clock and derived ratio metrics.
//
// YearsSinceEvent is nil for targets without a recorded event year;
// Metrics values may be NaN where a denominator was zero. Both are
// deliberate: a null or NaN is always preferable to an invented
// number.
type TimeSeriesRecord struct {
	TargetID        string
	Year            int
	YearsSinceEvent *int
	Values          map[string]float64
	Metrics         map[string]float64
}
