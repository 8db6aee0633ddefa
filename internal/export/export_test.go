package export

import (
	"database/sql"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tractwise/tractwise/internal/aggregate"
	"github.com/tractwise/tractwise/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intp(v int) *int { return &v }

func sampleRecords() []domain.TimeSeriesRecord {
	return []domain.TimeSeriesRecord{
		{
			TargetID:        "HD01",
			Year:            1970,
			YearsSinceEvent: intp(-5),
			Values:          map[string]float64{"pop_total": 1000, "pop_poc": 400},
			Metrics:         map[string]float64{"pct_poc": 40},
		},
		{
			TargetID:        domain.Unmatched,
			Year:            1970,
			YearsSinceEvent: nil,
			Values:          map[string]float64{"pop_total": 9000, "pop_poc": 0},
			Metrics:         map[string]float64{"pct_poc": math.NaN()},
		},
	}
}

func TestWriteTimeSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "by_district.csv")

	err := NewCSVWriter(discard()).WriteTimeSeries(path, sampleRecords())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "district,year,years_since_designation,pop_poc,pop_total,pct_poc\n" +
		"HD01,1970,-5,400,1000,40\n" +
		"NA,1970,,0,9000,\n"
	assert.Equal(t, want, string(data))
}

func TestWriteTimeSeries_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	err := NewCSVWriter(discard()).WriteTimeSeries(path, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "district,year,years_since_designation\n", string(data))
}

func TestWriteTimeSeries_CreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "by_district.csv")

	err := NewCSVWriter(discard()).WriteTimeSeries(path, sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.csv")

	records := []aggregate.StatusRecord{
		{Status: aggregate.StatusInside, Year: 1970, Values: map[string]float64{"pop_total": 1250}},
		{Status: aggregate.StatusOutside, Year: 1970, Values: map[string]float64{"pop_total": 9000}},
	}
	err := NewCSVWriter(discard()).WriteStatus(path, records)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "status,year,pop_total\n" +
		"in_district,1970,1250\n" +
		"out_of_district,1970,9000\n"
	assert.Equal(t, want, string(data))
}

func TestStore_SaveRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := Open(path, discard())
	require.NoError(t, err)
	defer store.Close()

	summary := RunSummary{
		ID:          "run-abc123",
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		OverlayMode: "union",
		TargetCRS:   2248,
		Sources:     2,
		Targets:     1,
		Slices:      3,
	}
	require.NoError(t, store.SaveRun(summary, sampleRecords()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	var crs int
	err = db.QueryRow(`SELECT overlay_mode, target_crs FROM runs WHERE id = ?`, "run-abc123").Scan(&mode, &crs)
	require.NoError(t, err)
	assert.Equal(t, "union", mode)
	assert.Equal(t, 2248, crs)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM series WHERE run_id = ?`, "run-abc123").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 6, count) // 2 records × (2 values + 1 metric)

	// Null offset for the unmatched row, NULL for the NaN metric.
	var offset sql.NullInt64
	var value sql.NullFloat64
	err = db.QueryRow(`
		SELECT years_since_designation, value FROM series
		WHERE run_id = ? AND district = ? AND name = 'pct_poc'`,
		"run-abc123", domain.Unmatched).Scan(&offset, &value)
	require.NoError(t, err)
	assert.False(t, offset.Valid)
	assert.False(t, value.Valid)

	var metricCount int
	err = db.QueryRow(`SELECT COUNT(*) FROM series WHERE run_id = ? AND is_metric = 1`, "run-abc123").Scan(&metricCount)
	require.NoError(t, err)
	assert.Equal(t, 2, metricCount)
}

func TestStore_DuplicateRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := Open(path, discard())
	require.NoError(t, err)
	defer store.Close()

	summary := RunSummary{ID: "run-dup", CreatedAt: time.Now(), OverlayMode: "intersection", TargetCRS: 2248}
	require.NoError(t, store.SaveRun(summary, nil))
	assert.Error(t, store.SaveRun(summary, nil))
}
