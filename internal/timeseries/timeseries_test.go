package timeseries

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tractwise/tractwise/internal/domain"
)

func testAligner() *Aligner {
	return NewAligner(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAlign_OffsetsAroundEvent(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 1970, Values: map[string]float64{"pop_total": 900}},
		{TargetID: "HD01", Year: 1980, Values: map[string]float64{"pop_total": 850}},
		{TargetID: "HD01", Year: 2000, Values: map[string]float64{"pop_total": 700}},
	}
	events := map[string]int{"HD01": 1980}

	out, stats := testAligner().Align(records, events, Options{})
	require.Len(t, out, 3)

	require.NotNil(t, out[0].YearsSinceEvent)
	assert.Equal(t, -10, *out[0].YearsSinceEvent)
	assert.Equal(t, 0, *out[1].YearsSinceEvent)
	assert.Equal(t, 20, *out[2].YearsSinceEvent)
	assert.Equal(t, 3, stats.Aligned)
	assert.Zero(t, stats.Undated)
}

func TestAlign_UndatedTargetKeptWithNullOffset(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 500}},
		{TargetID: domain.Unmatched, Year: 2010, Values: map[string]float64{"pop_total": 9000}},
	}
	events := map[string]int{"HD01": 1985}

	out, stats := testAligner().Align(records, events, Options{})
	require.Len(t, out, 2)

	// Sorted order puts HD01 first, the sentinel last.
	assert.Equal(t, "HD01", out[0].TargetID)
	assert.Equal(t, domain.Unmatched, out[1].TargetID)
	assert.Nil(t, out[1].YearsSinceEvent)
	assert.InDelta(t, 9000.0, out[1].Values["pop_total"], 1e-9)
	assert.Equal(t, 1, stats.Undated)
	assert.Zero(t, stats.DroppedRows)
}

func TestAlign_DropUndated(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 500}},
		{TargetID: "HD99", Year: 2010, Values: map[string]float64{"pop_total": 123}},
	}
	events := map[string]int{"HD01": 1985}

	out, stats := testAligner().Align(records, events, Options{DropUndated: true})
	require.Len(t, out, 1)
	assert.Equal(t, "HD01", out[0].TargetID)
	assert.Equal(t, 1, stats.DroppedRows)
}

func TestAlign_RatioMetrics(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{
			"pop_total":  1000,
			"pop_white":  400,
			"pop_rental": 250,
			"pop_units":  500,
		}},
	}
	metrics := []domain.RatioMetric{
		{Name: "pct_poc", Numerator: "pop_poc", Denominator: "pop_total"},
		{Name: "pct_rental", Numerator: "pop_rental", Denominator: "pop_units"},
	}
	records[0].Values["pop_poc"] = 600

	out, stats := testAligner().Align(records, map[string]int{"HD01": 1990}, Options{Metrics: metrics})
	require.Len(t, out, 1)

	assert.InDelta(t, 60.0, out[0].Metrics["pct_poc"], 1e-9)
	assert.InDelta(t, 50.0, out[0].Metrics["pct_rental"], 1e-9)
	assert.Zero(t, stats.NullMetrics)
}

func TestAlign_ZeroDenominatorYieldsNaN(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_poc": 5, "pop_total": 0}},
		{TargetID: "HD02", Year: 2010, Values: map[string]float64{"pop_poc": 5}},
	}
	metrics := []domain.RatioMetric{{Name: "pct_poc", Numerator: "pop_poc", Denominator: "pop_total"}}

	out, stats := testAligner().Align(records, map[string]int{"HD01": 1990, "HD02": 1990}, Options{Metrics: metrics})
	require.Len(t, out, 2)

	assert.True(t, math.IsNaN(out[0].Metrics["pct_poc"]), "zero denominator")
	assert.True(t, math.IsNaN(out[1].Metrics["pct_poc"]), "missing denominator")
	assert.Equal(t, 2, stats.NullMetrics)
}

func TestAlign_MetricsStayInPercentDomain(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_poc": 333.3, "pop_total": 999.9}},
	}
	metrics := []domain.RatioMetric{{Name: "pct_poc", Numerator: "pop_poc", Denominator: "pop_total"}}

	out, _ := testAligner().Align(records, map[string]int{"HD01": 1990}, Options{Metrics: metrics})
	require.Len(t, out, 1)

	v := out[0].Metrics["pct_poc"]
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
	assert.InDelta(t, 100.0/3.0, v, 1e-9)
}

func TestAlign_DoesNotMutateInput(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 100}},
	}

	out, _ := testAligner().Align(records, map[string]int{"HD01": 1990}, Options{})
	out[0].Values["pop_total"] = -1

	assert.Equal(t, 100.0, records[0].Values["pop_total"])
}

func TestAlign_Idempotent(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD02", Year: 2010, Values: map[string]float64{"pop_total": 200, "pop_poc": 80}},
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 100, "pop_poc": 30}},
	}
	events := map[string]int{"HD01": 1990}
	opts := Options{Metrics: []domain.RatioMetric{{Name: "pct_poc", Numerator: "pop_poc", Denominator: "pop_total"}}}

	first, _ := testAligner().Align(records, events, opts)
	second, _ := testAligner().Align(records, events, opts)

	assert.Equal(t, first, second)
}

func TestAlign_SortedByTargetThenYear(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD02", Year: 2010, Values: map[string]float64{}},
		{TargetID: "HD01", Year: 2020, Values: map[string]float64{}},
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{}},
	}
	events := map[string]int{"HD01": 1990, "HD02": 1990}

	out, _ := testAligner().Align(records, events, Options{})
	require.Len(t, out, 3)
	assert.Equal(t, "HD01", out[0].TargetID)
	assert.Equal(t, 2010, out[0].Year)
	assert.Equal(t, "HD01", out[1].TargetID)
	assert.Equal(t, 2020, out[1].Year)
	assert.Equal(t, "HD02", out[2].TargetID)
}
