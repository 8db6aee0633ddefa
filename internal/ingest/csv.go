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

// Derivation is an attribute computed from already-mapped columns,
// e.g. a people-of-color count as total minus white.
type Derivation struct {
	Name     string
	Add      []string
	Subtract []string
}

// CSVOptions maps a census extract's columns onto canonical
// attribute names. Extracts name their columns by table code
// (B18AA001 and the like); the pipeline works in stable names.
type CSVOptions struct {
	// IDColumn holds the region ID. When empty, IDComposite columns
	// are concatenated instead (state + county + tract makes a GEOID).
	IDColumn    string
	IDComposite []string
	// YearColumn holds the row's census year. When empty, Year is
	// applied to every row.
	YearColumn string
	Year       int
	// Rename maps raw column names to canonical attribute names.
	// Columns not listed are ignored.
	Rename map[string]string
	// Derived attributes are computed after renaming.
	Derived []Derivation
}

// CSVLoader reads attribute extracts into snapshot sets.
type CSVLoader struct {
	logger *slog.Logger
}

// NewCSVLoader creates a loader.
func NewCSVLoader(logger *slog.Logger) *CSVLoader {
	return &CSVLoader{logger: logger}
}

// LoadSnapshots reads a CSV extract from path. Empty and "NA" cells
// in mapped columns are treated as missing and omitted from the
// snapshot; any other unparseable cell is an error. A duplicate
// (region, year) pair is an error.
func (l *CSVLoader) LoadSnapshots(path string, opts CSVOptions) (*domain.SnapshotSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "open extract %s", path)
	}
	defer f.Close()

	set, err := l.readSnapshots(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "extract %s", path)
	}

	l.logger.Info("loaded attribute extract",
		"path", path,
		"snapshots", set.Len(),
		"years", len(set.Years()),
	)
	return set, nil
}

func (l *CSVLoader) readSnapshots(r io.Reader, opts CSVOptions) (*domain.SnapshotSet, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	idCols, err := resolveIDColumns(cols, opts)
	if err != nil {
		return nil, err
	}
	yearCol := -1
	if opts.YearColumn != "" {
		yearCol, err = columnIndex(cols, opts.YearColumn)
		if err != nil {
			return nil, err
		}
	}
	type mapped struct {
		index int
		name  string
	}
	mappedCols := make([]mapped, 0, len(opts.Rename))
	for raw, canonical := range opts.Rename {
		i, err := columnIndex(cols, raw)
		if err != nil {
			return nil, err
		}
		mappedCols = append(mappedCols, mapped{index: i, name: canonical})
	}

	set := domain.NewSnapshotSet()
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		id := regionIDFromRow(row, idCols)
		if id == "" {
			return nil, fmt.Errorf("line %d: empty region ID", line)
		}

		year := opts.Year
		if yearCol >= 0 {
			year, err = parseCensusYear(row[yearCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}

		values := make(map[string]float64, len(mappedCols)+len(opts.Derived))
		for _, m := range mappedCols {
			cell := strings.TrimSpace(row[m.index])
			if cell == "" || cell == "NA" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, m.name, err)
			}
			values[m.name] = v
		}
		for _, d := range opts.Derived {
			values[d.Name] = derive(values, d)
		}

		if err := set.Add(domain.AttributeSnapshot{RegionID: id, Year: year, Values: values}); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return set, nil
}

func resolveIDColumns(cols map[string]int, opts CSVOptions) ([]int, error) {
	if opts.IDColumn != "" {
		i, err := columnIndex(cols, opts.IDColumn)
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	}
	if len(opts.IDComposite) == 0 {
		return nil, fmt.Errorf("no ID column configured")
	}
	out := make([]int, 0, len(opts.IDComposite))
	for _, name := range opts.IDComposite {
		i, err := columnIndex(cols, name)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func columnIndex(cols map[string]int, name string) (int, error) {
	i, ok := cols[name]
	if !ok {
		return 0, fmt.Errorf("missing column %q", name)
	}
	return i, nil
}

func regionIDFromRow(row []string, idCols []int) string {
	if len(idCols) == 1 {
		return strings.TrimSpace(row[idCols[0]])
	}
	var b strings.Builder
	for _, i := range idCols {
		b.WriteString(strings.TrimSpace(row[i]))
	}
	return b.String()
}

// parseCensusYear accepts plain years and the "1970-1980" spans some
// time-series extracts use, keeping the first year of the span.
func parseCensusYear(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if i := strings.IndexByte(cell, '-'); i > 0 {
		cell = cell[:i]
	}
	year, err := strconv.Atoi(cell)
	if err != nil {
		return 0, fmt.Errorf("bad year %q", cell)
	}
	return year, nil
}

func derive(values map[string]float64, d Derivation) float64 {
	total := 0.0
	for _, name := range d.Add {
		total += values[name]
	}
	for _, name := range d.Subtract {
		total -= values[name]
	}
	return total
}
