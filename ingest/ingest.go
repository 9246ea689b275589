// Package ingest loads recordings from CSV files into a Collection.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
)

// ErrEmptyFile is returned for files without a header or data rows.
var ErrEmptyFile = errors.New("empty file")

// TimeColumnCandidates are tried in order when no time column is
// configured. The first column is used when none of them is present.
var TimeColumnCandidates = []string{"timestamp", "time_s", "time"}

// Reader reads recording CSVs. Every column must be numeric; empty cells
// and NA/NaN markers load as NaN.
type Reader struct {
	// TimeColumn forces the time axis. Empty selects from
	// TimeColumnCandidates.
	TimeColumn string

	collector *report.Collector
	logger    logging.Logger
}

// NewReader creates a reader recording skipped files to collector.
func NewReader(timeColumn string, collector *report.Collector) *Reader {
	return &Reader{
		TimeColumn: timeColumn,
		collector:  collector,
		logger: logging.WithFields(logging.Fields{
			"component": "ingest",
		}),
	}
}

// KeyFromFilename derives the table key of a recording file: the base name
// without extension, lowercased, with dashes and spaces replaced by
// underscores.
func KeyFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	return strings.NewReplacer("-", "_", " ", "_").Replace(base)
}

// ReadCSV parses one recording. key is only used in error messages.
func (r *Reader) ReadCSV(in io.Reader, key string) (*signal.Table, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", key, ErrEmptyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", key, err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if names[i] == "" {
			return nil, fmt.Errorf("%s: column %d has no name: %w", key, i+1, report.ErrStructuralViolation)
		}
		if slices.Contains(names[:i], names[i]) {
			return nil, fmt.Errorf("%s: duplicate column %q: %w", key, names[i], report.ErrStructuralViolation)
		}
	}

	cols := make([][]float64, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", key, line, err)
		}
		for i, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", key, line, names[i], err)
			}
			cols[i] = append(cols[i], v)
		}
	}
	if len(cols[0]) == 0 {
		return nil, fmt.Errorf("%s: no data rows: %w", key, ErrEmptyFile)
	}

	t := signal.NewTable(r.timeColumn(names))
	for i, name := range names {
		if err := t.SetColumn(name, cols[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func (r *Reader) timeColumn(names []string) string {
	if r.TimeColumn != "" {
		return r.TimeColumn
	}
	for _, c := range TimeColumnCandidates {
		if slices.Contains(names, c) {
			return c
		}
	}
	return names[0]
}

func parseCell(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "na", "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", s)
	}
	return v, nil
}

// ReadFile reads the recording at path under its derived key.
func (r *Reader) ReadFile(path string) (string, *signal.Table, error) {
	key := KeyFromFilename(path)
	f, err := os.Open(path)
	if err != nil {
		return key, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := r.ReadCSV(f, key)
	return key, t, err
}

// ReadDir loads every *.csv in dir, in lexical file order. Files that fail
// to parse are skipped with a diagnostic; two files mapping to one key is
// an error.
func (r *Reader) ReadDir(dir string) (*signal.Collection, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(paths)

	c := signal.NewCollection()
	for _, p := range paths {
		key, t, err := r.ReadFile(p)
		if err != nil {
			r.collector.Add(report.Diagnostic{
				Key:    key,
				Stage:  "ingest",
				Kind:   report.KindInput,
				Reason: err.Error(),
			})
			continue
		}
		if err := c.Add(key, t); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		r.logger.Debug("loaded recording", logging.Fields{
			"key":  key,
			"rows": t.Len(),
		})
	}
	r.logger.Info("loaded recordings", logging.Fields{
		"dir":     dir,
		"files":   len(paths),
		"tables":  c.Len(),
		"skipped": len(paths) - c.Len(),
	})
	return c, nil
}
