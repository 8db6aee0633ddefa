package domain

import (
	"fmt"
	"sort"
)

// AttributeSnapshot is the attribute values observed for one region in
// one census year. A region may have several snapshots, one per year.
type AttributeSnapshot struct {
	RegionID string
	Year     int
	Values   map[string]float64
}

// SnapshotSet indexes snapshots by (region, year) and enforces the
// at-most-one-snapshot-per-pair invariant.
type SnapshotSet struct {
	byRegion map[string]map[int]AttributeSnapshot
	years    map[int]int // year -> snapshot count
}

// NewSnapshotSet creates an empty snapshot set.
func NewSnapshotSet() *SnapshotSet {
	return &SnapshotSet{
		byRegion: make(map[string]map[int]AttributeSnapshot),
		years:    make(map[int]int),
	}
}

// Add inserts a snapshot. It returns an error if a snapshot already
// exists for the same (region, year) pair.
func (s *SnapshotSet) Add(snap AttributeSnapshot) error {
	byYear, ok := s.byRegion[snap.RegionID]
	if !ok {
		byYear = make(map[int]AttributeSnapshot)
		s.byRegion[snap.RegionID] = byYear
	}
	if _, exists := byYear[snap.Year]; exists {
		return fmt.Errorf("duplicate snapshot for region %s year %d", snap.RegionID, snap.Year)
	}
	byYear[snap.Year] = snap
	s.years[snap.Year]++
	return nil
}

// Get returns the snapshot for a (region, year) pair.
func (s *SnapshotSet) Get(regionID string, year int) (AttributeSnapshot, bool) {
	byYear, ok := s.byRegion[regionID]
	if !ok {
		return AttributeSnapshot{}, false
	}
	snap, ok := byYear[year]
	return snap, ok
}

// Years returns every observation year present, ascending.
func (s *SnapshotSet) Years() []int {
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// RegionIDs returns every region identifier present, ascending.
func (s *SnapshotSet) RegionIDs() []string {
	ids := make([]string, 0, len(s.byRegion))
	for id := range s.byRegion {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CountForYear returns how many regions have a snapshot in the year.
func (s *SnapshotSet) CountForYear(year int) int {
	return s.years[year]
}

// Len returns the total number of snapshots.
func (s *SnapshotSet) Len() int {
	n := 0
	for _, c := range s.years {
		n += c
	}
	return n
}
