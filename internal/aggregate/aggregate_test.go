package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tractwise/tractwise/internal/domain"
)

func TestSum_GroupsByTargetAndYear(t *testing.T) {
	records := []domain.AllocatedRecord{
		{SourceID: "tract1", TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 600}},
		{SourceID: "tract2", TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 250}},
		{SourceID: "tract1", TargetID: "HD02", Year: 2010, Values: map[string]float64{"pop_total": 400}},
		{SourceID: "tract1", TargetID: "HD01", Year: 2020, Values: map[string]float64{"pop_total": 580}},
	}

	out := Sum(records)
	require.Len(t, out, 3)

	assert.Equal(t, "HD01", out[0].TargetID)
	assert.Equal(t, 2010, out[0].Year)
	assert.InDelta(t, 850.0, out[0].Values["pop_total"], 1e-9)

	assert.Equal(t, "HD01", out[1].TargetID)
	assert.Equal(t, 2020, out[1].Year)
	assert.InDelta(t, 580.0, out[1].Values["pop_total"], 1e-9)

	assert.Equal(t, "HD02", out[2].TargetID)
	assert.InDelta(t, 400.0, out[2].Values["pop_total"], 1e-9)
}

func TestSum_MergesDisjointAttributeSets(t *testing.T) {
	records := []domain.AllocatedRecord{
		{SourceID: "a", TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 10, "pop_rental": 4}},
		{SourceID: "b", TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 5, "pop_owner": 3}},
	}

	out := Sum(records)
	require.Len(t, out, 1)
	assert.InDelta(t, 15.0, out[0].Values["pop_total"], 1e-9)
	assert.InDelta(t, 4.0, out[0].Values["pop_rental"], 1e-9)
	assert.InDelta(t, 3.0, out[0].Values["pop_owner"], 1e-9)
}

func TestSum_KeepsUnmatchedGroup(t *testing.T) {
	records := []domain.AllocatedRecord{
		{SourceID: "tract1", TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 700}},
		{SourceID: "tract1", TargetID: domain.Unmatched, Year: 2010, Values: map[string]float64{"pop_total": 300}},
	}

	out := Sum(records)
	require.Len(t, out, 2)

	total := 0.0
	for _, r := range out {
		total += r.Values["pop_total"]
	}
	assert.InDelta(t, 1000.0, total, 1e-9)
}

func TestSum_Empty(t *testing.T) {
	assert.Empty(t, Sum(nil))
}

func TestByStatus(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 850}},
		{TargetID: "HD02", Year: 2010, Values: map[string]float64{"pop_total": 400}},
		{TargetID: domain.Unmatched, Year: 2010, Values: map[string]float64{"pop_total": 9000}},
		{TargetID: "HD01", Year: 2020, Values: map[string]float64{"pop_total": 580}},
	}

	out := ByStatus(records)
	require.Len(t, out, 3)

	assert.Equal(t, StatusInside, out[0].Status)
	assert.Equal(t, 2010, out[0].Year)
	assert.InDelta(t, 1250.0, out[0].Values["pop_total"], 1e-9)

	assert.Equal(t, StatusOutside, out[1].Status)
	assert.Equal(t, 2010, out[1].Year)
	assert.InDelta(t, 9000.0, out[1].Values["pop_total"], 1e-9)

	assert.Equal(t, StatusInside, out[2].Status)
	assert.Equal(t, 2020, out[2].Year)
}

func TestByStatus_IntersectionInputHasNoOutsideRow(t *testing.T) {
	records := []domain.AggregatedRecord{
		{TargetID: "HD01", Year: 2010, Values: map[string]float64{"pop_total": 850}},
	}

	out := ByStatus(records)
	require.Len(t, out, 1)
	assert.Equal(t, StatusInside, out[0].Status)
}
