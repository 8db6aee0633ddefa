package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// DatesOptions names the columns of an event-year CSV.
type DatesOptions struct {
	IDColumn   string
	YearColumn string
}

// DatesLoader reads region event years from a two-column CSV.
type DatesLoader struct {
	logger *slog.Logger
}

// NewDatesLoader creates a loader.
func NewDatesLoader(logger *slog.Logger) *DatesLoader {
	return &DatesLoader{logger: logger}
}

// LoadEventYears reads a CSV mapping region IDs to event years. Rows
// with an empty or "NA" year are kept out of the map: an undated
// region is data, not an error. A region listed twice with different
// years is an error.
func (l *DatesLoader) LoadEventYears(path string, opts DatesOptions) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "open event years %s", path)
	}
	defer f.Close()

	years, undated, err := l.readEventYears(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "event years %s", path)
	}

	l.logger.Info("loaded event years",
		"path", path,
		"dated", len(years),
		"undated", undated,
	)
	return years, nil
}

func (l *DatesLoader) readEventYears(r io.Reader, opts DatesOptions) (map[string]int, int, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idCol, yearCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case opts.IDColumn:
			idCol = i
		case opts.YearColumn:
			yearCol = i
		}
	}
	if idCol < 0 {
		return nil, 0, fmt.Errorf("missing column %q", opts.IDColumn)
	}
	if yearCol < 0 {
		return nil, 0, fmt.Errorf("missing column %q", opts.YearColumn)
	}

	years := make(map[string]int)
	undated := 0
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		line++

		id := strings.TrimSpace(row[idCol])
		if id == "" {
			return nil, 0, fmt.Errorf("line %d: empty region ID", line)
		}

		cell := strings.TrimSpace(row[yearCol])
		if cell == "" || cell == "NA" {
			undated++
			continue
		}
		year, err := strconv.Atoi(cell)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: bad year %q", line, cell)
		}

		if prev, ok := years[id]; ok && prev != year {
			return nil, 0, fmt.Errorf("line %d: region %s listed with years %d and %d", line, id, prev, year)
		}
		years[id] = year
	}
	return years, undated, nil
}

// ApplyEventYears stamps loaded years onto regions in place. Regions
// already dated from their boundary file keep their own year; the CSV
// fills gaps rather than overriding.
func ApplyEventYears(regions []domain.Region, years map[string]int) {
	for i := range regions {
		if regions[i].EventYear != nil {
			continue
		}
		if year, ok := years[regions[i].ID]; ok {
			y := year
			regions[i].EventYear = &y
		}
	}
}
