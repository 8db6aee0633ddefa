package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSet_AddAndGet(t *testing.T) {
	set := NewSnapshotSet()

	err := set.Add(AttributeSnapshot{
		RegionID: "11001000100",
		Year:     2020,
		Values:   map[string]float64{"pop_total": 4200},
	})
	require.NoError(t, err)

	snap, ok := set.Get("11001000100", 2020)
	require.True(t, ok)
	assert.Equal(t, 4200.0, snap.Values["pop_total"])

	_, ok = set.Get("11001000100", 2010)
	assert.False(t, ok)

	_, ok = set.Get("missing", 2020)
	assert.False(t, ok)
}

func TestSnapshotSet_RejectsDuplicatePair(t *testing.T) {
	set := NewSnapshotSet()

	require.NoError(t, set.Add(AttributeSnapshot{RegionID: "t1", Year: 2010}))

	// Same region, same year: violates the snapshot invariant.
	err := set.Add(AttributeSnapshot{RegionID: "t1", Year: 2010})
	assert.Error(t, err)

	// Same region, different year is fine.
	assert.NoError(t, set.Add(AttributeSnapshot{RegionID: "t1", Year: 2020}))
}

func TestSnapshotSet_YearsSorted(t *testing.T) {
	set := NewSnapshotSet()
	for _, year := range []int{2020, 1970, 1990, 1980} {
		require.NoError(t, set.Add(AttributeSnapshot{RegionID: "t1", Year: year}))
	}
	require.NoError(t, set.Add(AttributeSnapshot{RegionID: "t2", Year: 1990}))

	assert.Equal(t, []int{1970, 1980, 1990, 2020}, set.Years())
	assert.Equal(t, 2, set.CountForYear(1990))
	assert.Equal(t, 5, set.Len())
	assert.Equal(t, []string{"t1", "t2"}, set.RegionIDs())
}

func TestOverlayMode_String(t *testing.T) {
	assert.Equal(t, "intersection", ModeIntersection.String())
	assert.Equal(t, "union", ModeUnion.String())
}

func TestParseOverlayMode(t *testing.T) {
	assert.Equal(t, ModeUnion, ParseOverlayMode("union"))
	assert.Equal(t, ModeIntersection, ParseOverlayMode("intersection"))
	assert.Equal(t, ModeIntersection, ParseOverlayMode(""))
}

func TestRegion_EventYear(t *testing.T) {
	r := Region{ID: "HD01"}
	assert.False(t, r.HasEvent())

	designated := r.WithEventYear(1978)
	require.True(t, designated.HasEvent())
	assert.Equal(t, 1978, *designated.EventYear)

	// The original region is untouched.
	assert.False(t, r.HasEvent())
}
