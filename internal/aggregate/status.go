package aggregate

import (
	"sort"

	"github.com/tractwise/tractwise/internal/domain"
)

// Status labels for the two-row rollup.
const (
	StatusInside  = "in_district"
	StatusOutside = "out_of_district"
)

// StatusRecord is a cross-sectional rollup row: all targets collapsed
// to inside-vs-outside per year.
type StatusRecord struct {
	Status string
	Year   int
	Values map[string]float64
}

// ByStatus collapses aggregated records to two rows per year: totals
// inside any target, and totals under the unmatched sentinel. Only
// union-mode runs produce an outside row; intersection-mode input
// yields inside rows alone.
func ByStatus(records []domain.AggregatedRecord) []StatusRecord {
	type key struct {
		status string
		year   int
	}

	groups := make(map[key]map[string]float64)
	for _, r := range records {
		status := StatusInside
		if r.TargetID == domain.Unmatched {
			status = StatusOutside
		}
		k := key{status: status, year: r.Year}
		values, ok := groups[k]
		if !ok {
			values = make(map[string]float64, len(r.Values))
			groups[k] = values
		}
		for name, v := range r.Values {
			values[name] += v
		}
	}

	out := make([]StatusRecord, 0, len(groups))
	for k, values := range groups {
		out = append(out, StatusRecord{Status: k.status, Year: k.year, Values: values})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Status < out[j].Status
	})
	return out
}
