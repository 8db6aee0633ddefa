package overlay

import (
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

func mustWKT(t *testing.T, wkt string) geom.Geometry {
	t.Helper()
	g, err := geom.UnmarshalWKT(wkt)
	require.NoError(t, err)
	return g
}

func region(t *testing.T, id, wkt string) domain.Region {
	t.Helper()
	g := mustWKT(t, wkt)
	return domain.Region{ID: id, Geometry: g, Area: g.Area()}
}

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// One 10×10 tract fully covered by two districts splitting it 60/40.
func TestRun_FullCoverageSplit(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{
		region(t, "HD01", "POLYGON((0 0,6 0,6 10,0 10,0 0))"),
		region(t, "HD02", "POLYGON((6 0,10 0,10 10,6 10,6 0))"),
	}

	slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-9})
	require.NoError(t, err)
	require.Len(t, slices, 2)

	byTarget := map[string]float64{}
	for _, s := range slices {
		assert.Equal(t, "tract1", s.SourceID)
		byTarget[s.TargetID] = s.Area
	}
	assert.InDelta(t, 60.0, byTarget["HD01"], 1e-6)
	assert.InDelta(t, 40.0, byTarget["HD02"], 1e-6)
	assert.Equal(t, 2, stats.CandidatePairs)
	assert.Zero(t, stats.UnmatchedSource)
}

// A district covering 70% of a tract: intersection mode drops the
// remainder, union mode keeps it under the unmatched sentinel.
func TestRun_PartialCoverage(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{region(t, "HD01", "POLYGON((0 0,7 0,7 10,0 10,0 0))")}

	t.Run("intersection", func(t *testing.T) {
		slices, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-9})
		require.NoError(t, err)
		require.Len(t, slices, 1)
		assert.InDelta(t, 70.0, slices[0].Area, 1e-6)
	})

	t.Run("union", func(t *testing.T) {
		slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeUnion, SliverThreshold: 1e-9})
		require.NoError(t, err)
		require.Len(t, slices, 2)

		byTarget := map[string]float64{}
		for _, s := range slices {
			byTarget[s.TargetID] = s.Area
		}
		assert.InDelta(t, 70.0, byTarget["HD01"], 1e-6)
		assert.InDelta(t, 30.0, byTarget[domain.Unmatched], 1e-6)
		assert.Equal(t, 1, stats.UnmatchedSource)
	})
}

// Union mode also reports district area outside every tract.
func TestRun_UncoveredTarget(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{region(t, "HD01", "POLYGON((5 0,15 0,15 10,5 10,5 0))")}

	slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeUnion, SliverThreshold: 1e-9})
	require.NoError(t, err)

	var sourceSide, targetSide *domain.Slice
	for i := range slices {
		s := &slices[i]
		switch {
		case s.SourceID == domain.Unmatched:
			targetSide = s
		case s.TargetID == domain.Unmatched:
			sourceSide = s
		}
	}

	require.NotNil(t, sourceSide, "tract area outside the district")
	assert.InDelta(t, 5*10.0, sourceSide.Area, 1e-6)

	require.NotNil(t, targetSide, "district area outside every tract")
	assert.Equal(t, "HD01", targetSide.TargetID)
	assert.InDelta(t, 5*10.0, targetSide.Area, 1e-6)
	assert.Equal(t, 1, stats.UnmatchedTarget)
}

// The sum of a source's slice areas never exceeds the source's area,
// even when districts overlap each other.
func TestRun_PartitionBoundWithOverlappingTargets(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{
		region(t, "HD01", "POLYGON((0 0,6 0,6 10,0 10,0 0))"),
		region(t, "HD02", "POLYGON((4 0,10 0,10 10,4 10,4 0))"), // overlaps HD01 on x∈[4,6]
	}

	slices, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-9})
	require.NoError(t, err)

	total := 0.0
	byTarget := map[string]float64{}
	for _, s := range slices {
		total += s.Area
		byTarget[s.TargetID] = s.Area
	}

	assert.LessOrEqual(t, total, 100.0+1e-6)
	// Lower ID wins the contested strip.
	assert.InDelta(t, 60.0, byTarget["HD01"], 1e-6)
	assert.InDelta(t, 40.0, byTarget["HD02"], 1e-6)
}

func TestRun_SliverSuppression(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{
		region(t, "HD01", "POLYGON((0 0,9.9999999 0,9.9999999 10,0 10,0 0))"),
		// Overlaps only a 1e-7 wide strip of the tract.
		region(t, "HD02", "POLYGON((9.9999999 0,20 0,20 10,9.9999999 10,9.9999999 0))"),
	}

	slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-4})
	require.NoError(t, err)

	require.Len(t, slices, 1)
	assert.Equal(t, "HD01", slices[0].TargetID)
	assert.Equal(t, 1, stats.SuppressedSlivers)
}

func TestRun_DisjointBoxesNeverPaired(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,1 0,1 1,0 1,0 0))")}
	targets := []domain.Region{region(t, "HD01", "POLYGON((100 100,101 100,101 101,100 101,100 100))")}

	slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-9})
	require.NoError(t, err)
	assert.Empty(t, slices)
	assert.Zero(t, stats.CandidatePairs)
}

func TestRun_MalformedGeometry(t *testing.T) {
	// A bowtie: the ring crosses itself.
	bowtie, err := geom.UnmarshalWKT("POLYGON((0 0,2 2,2 0,0 2,0 0))", geom.NoValidate{})
	require.NoError(t, err)

	sources := []domain.Region{{ID: "bad", Geometry: bowtie}}
	targets := []domain.Region{region(t, "HD01", "POLYGON((0 0,2 0,2 2,0 2,0 0))")}

	t.Run("aborts by default", func(t *testing.T) {
		_, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrGeometry))
		assert.Contains(t, err.Error(), "bad")
	})

	t.Run("skip and log when opted in", func(t *testing.T) {
		slices, stats, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SkipInvalid: true})
		require.NoError(t, err)
		assert.Empty(t, slices)
		assert.Equal(t, 1, stats.SkippedInvalid)
	})
}

// Slices with the same source/target tags are not merged.
func TestRun_AdjacentSlicesNotMerged(t *testing.T) {
	// One district in two disjoint pieces would arrive as two regions
	// sharing a prefix; here two tracts each meet the same district.
	sources := []domain.Region{
		region(t, "tractA", "POLYGON((0 0,5 0,5 10,0 10,0 0))"),
		region(t, "tractB", "POLYGON((5 0,10 0,10 10,5 10,5 0))"),
	}
	targets := []domain.Region{region(t, "HD01", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}

	slices, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeIntersection, SliverThreshold: 1e-9})
	require.NoError(t, err)
	require.Len(t, slices, 2)

	ids := []string{slices[0].SourceID, slices[1].SourceID}
	sort.Strings(ids)
	assert.Equal(t, []string{"tractA", "tractB"}, ids)
}

func TestRun_Deterministic(t *testing.T) {
	sources := []domain.Region{region(t, "tract1", "POLYGON((0 0,10 0,10 10,0 10,0 0))")}
	targets := []domain.Region{
		region(t, "HD02", "POLYGON((6 0,10 0,10 10,6 10,6 0))"),
		region(t, "HD01", "POLYGON((0 0,6 0,6 10,0 10,0 0))"),
	}

	first, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeUnion, SliverThreshold: 1e-9})
	require.NoError(t, err)
	second, _, err := testEngine().Run(sources, targets, Options{Mode: domain.ModeUnion, SliverThreshold: 1e-9})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SourceID, second[i].SourceID)
		assert.Equal(t, first[i].TargetID, second[i].TargetID)
		assert.Equal(t, first[i].Area, second[i].Area)
	}
	// Clip order follows target ID, not input order.
	assert.Equal(t, "HD01", first[0].TargetID)
}
