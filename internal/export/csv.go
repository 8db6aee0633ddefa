// Package export writes pipeline results to CSV files and SQLite.
package export

import (
	"encoding/csv"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/tractwise/tractwise/internal/aggregate"
	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// CSVWriter writes result tables as CSV. Column order is the fixed
// key columns followed by attribute names sorted alphabetically, so
// the same inputs always produce the same file.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	return &CSVWriter{logger: logger}
}

// WriteTimeSeries writes aligned records to path. Null offsets and
// NaN metric cells render as empty strings; a blank cell is honest
// about a value that does not exist.
func (w *CSVWriter) WriteTimeSeries(path string, records []domain.TimeSeriesRecord) error {
	valueCols := collectKeys(records, func(r domain.TimeSeriesRecord) map[string]float64 { return r.Values })
	metricCols := collectKeys(records, func(r domain.TimeSeriesRecord) map[string]float64 { return r.Metrics })

	header := append([]string{"district", "year", "years_since_designation"}, valueCols...)
	header = append(header, metricCols...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, r.TargetID, strconv.Itoa(r.Year), formatOffset(r.YearsSinceEvent))
		for _, col := range valueCols {
			row = append(row, formatCell(r.Values, col))
		}
		for _, col := range metricCols {
			row = append(row, formatCell(r.Metrics, col))
		}
		rows = append(rows, row)
	}

	if err := w.writeFile(path, header, rows); err != nil {
		return err
	}
	w.logger.Info("wrote time series CSV", "path", path, "rows", len(rows))
	return nil
}

// WriteStatus writes the inside-vs-outside rollup to path.
func (w *CSVWriter) WriteStatus(path string, records []aggregate.StatusRecord) error {
	valueCols := collectKeys(records, func(r aggregate.StatusRecord) map[string]float64 { return r.Values })
	header := append([]string{"status", "year"}, valueCols...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, r.Status, strconv.Itoa(r.Year))
		for _, col := range valueCols {
			row = append(row, formatCell(r.Values, col))
		}
		rows = append(rows, row)
	}

	if err := w.writeFile(path, header, rows); err != nil {
		return err
	}
	w.logger.Info("wrote status CSV", "path", path, "rows", len(rows))
	return nil
}

func (w *CSVWriter) writeFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "create %s", path)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return errors.Wrapf(err, errors.CodeInternal, "write %s", path)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			f.Close()
			return errors.Wrapf(err, errors.CodeInternal, "write %s", path)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return errors.Wrapf(err, errors.CodeInternal, "flush %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "close %s", path)
	}
	return nil
}

func collectKeys[T any](records []T, get func(T) map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for name := range get(r) {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func formatOffset(offset *int) string {
	if offset == nil {
		return ""
	}
	return strconv.Itoa(*offset)
}

func formatCell(values map[string]float64, col string) string {
	v, ok := values[col]
	if !ok || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
