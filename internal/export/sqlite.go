package export

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// RunSummary is the per-run header row persisted next to the series.
type RunSummary struct {
	ID                string
	CreatedAt         time.Time
	OverlayMode       string
	TargetCRS         int
	Sources           int
	Targets           int
	Slices            int
	SuppressedSlivers int
	SkippedInvalid    int
	UnmatchedSources  int
	UnmatchedTargets  int
	MissingSnapshots  int
	DegenerateAreas   int
}

// Store persists pipeline results in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a results store at the given path. It configures WAL
// mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes one run's summary and series in a single
// transaction. NaN values are stored as NULL.
func (s *Store) SaveRun(summary RunSummary, records []domain.TimeSeriesRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, created_at, overlay_mode, target_crs,
			sources, targets, slices, suppressed_slivers, skipped_invalid,
			unmatched_sources, unmatched_targets, missing_snapshots, degenerate_areas
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.CreatedAt.UTC().Format(time.RFC3339), summary.OverlayMode, summary.TargetCRS,
		summary.Sources, summary.Targets, summary.Slices, summary.SuppressedSlivers, summary.SkippedInvalid,
		summary.UnmatchedSources, summary.UnmatchedTargets, summary.MissingSnapshots, summary.DegenerateAreas,
	)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "insert run %s", summary.ID)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO series (run_id, district, year, years_since_designation, name, value, is_metric)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "prepare series insert")
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		var offset any
		if r.YearsSinceEvent != nil {
			offset = *r.YearsSinceEvent
		}
		for name, v := range r.Values {
			if _, err := stmt.Exec(summary.ID, r.TargetID, r.Year, offset, name, nullNaN(v), 0); err != nil {
				return errors.Wrapf(err, errors.CodeInternal, "insert series row for %s", r.TargetID)
			}
			inserted++
		}
		for name, v := range r.Metrics {
			if _, err := stmt.Exec(summary.ID, r.TargetID, r.Year, offset, name, nullNaN(v), 1); err != nil {
				return errors.Wrapf(err, errors.CodeInternal, "insert metric row for %s", r.TargetID)
			}
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "commit run")
	}

	s.logger.Info("saved run",
		"run_id", summary.ID,
		"districts", summary.Targets,
		"series_rows", inserted,
	)
	return nil
}

func nullNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
