// Package aggregate collapses allocated slice records into one row
// per target region and year.
package aggregate

import (
	"sort"

	"github.com/tractwise/tractwise/internal/domain"
)

// Sum groups allocated records by (target, year) and sums every
// attribute. The unmatched sentinel is an ordinary group: in union
// mode it carries the population falling outside every target, and
// dropping it here would make the totals lie.
//
// Output is sorted by target ID, then year, so repeated runs over the
// same inputs produce byte-identical exports.
func Sum(records []domain.AllocatedRecord) []domain.AggregatedRecord {
	type key struct {
		target string
		year   int
	}

	groups := make(map[key]map[string]float64)
	for _, r := range records {
		k := key{target: r.TargetID, year: r.Year}
		values, ok := groups[k]
		if !ok {
			values = make(map[string]float64, len(r.Values))
			groups[k] = values
		}
		for name, v := range r.Values {
			values[name] += v
		}
	}

	out := make([]domain.AggregatedRecord, 0, len(groups))
	for k, values := range groups {
		out = append(out, domain.AggregatedRecord{
			TargetID: k.target,
			Year:     k.year,
			Values:   values,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Year < out[j].Year
	})
	return out
}
