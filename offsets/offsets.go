// Package offsets holds the external table of per-(location, trial) time
// offsets used to bound search windows during cross-sensor alignment.
package offsets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/trial"
)

// Column names of the offset CSV.
const (
	ColumnIMU    = "imu"
	ColumnTrial  = "trial_num"
	ColumnOffset = "offset"
)

// Entry is one offset row, in seconds.
type Entry struct {
	Location trial.Location `json:"imu"`
	Trial    int            `json:"trial_num"`
	Offset   float64        `json:"offset"`
}

// Table maps (location, trial) to exactly one offset.
type Table struct {
	entries []Entry
	index   map[trial.Pair]float64
}

// New builds a table. Duplicate (location, trial) pairs and non-finite
// offsets are structural violations.
func New(entries []Entry) (*Table, error) {
	t := &Table{index: make(map[trial.Pair]float64, len(entries))}
	for i, e := range entries {
		if e.Trial <= 0 {
			return nil, fmt.Errorf("row %d: trial number %d is not positive: %w", i, e.Trial, report.ErrStructuralViolation)
		}
		if math.IsNaN(e.Offset) || math.IsInf(e.Offset, 0) {
			return nil, fmt.Errorf("row %d: offset %v is not finite: %w", i, e.Offset, report.ErrStructuralViolation)
		}
		p := trial.Pair{Location: e.Location, Trial: e.Trial}
		if _, dup := t.index[p]; dup {
			return nil, fmt.Errorf("row %d: duplicate offset for %s: %w", i, p, report.ErrStructuralViolation)
		}
		t.index[p] = e.Offset
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// Lookup returns the offset for an exact (location, trial) match.
func (t *Table) Lookup(loc trial.Location, trialNum int) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.index[trial.Pair{Location: loc, Trial: trialNum}]
	return v, ok
}

// Require is Lookup returning a report.ErrNoOffsetFound error on a miss.
func (t *Table) Require(loc trial.Location, trialNum int) (float64, error) {
	v, ok := t.Lookup(loc, trialNum)
	if !ok {
		return 0, fmt.Errorf("%s/trial%d: %w", loc, trialNum, report.ErrNoOffsetFound)
	}
	return v, nil
}

// Entries returns the rows in input order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.entries)
}

// ReadCSV parses a CSV with imu, trial_num and offset columns (any order,
// extra columns ignored). Wrong cell types are structural violations.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read offset header: %w", err)
	}
	pos := map[string]int{ColumnIMU: -1, ColumnTrial: -1, ColumnOffset: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, ok := pos[name]; ok {
			pos[name] = i
		}
	}
	for name, i := range pos {
		if i < 0 {
			return nil, fmt.Errorf("offset table column %q: %w", name, report.ErrStructuralViolation)
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read offset row %d: %w", line, err)
		}
		loc := strings.ToLower(strings.TrimSpace(rec[pos[ColumnIMU]]))
		trialNum, err := parseTrial(rec[pos[ColumnTrial]])
		if err != nil {
			return nil, fmt.Errorf("offset row %d trial_num %q: %w", line, rec[pos[ColumnTrial]], report.ErrStructuralViolation)
		}
		off, err := strconv.ParseFloat(strings.TrimSpace(rec[pos[ColumnOffset]]), 64)
		if err != nil {
			return nil, fmt.Errorf("offset row %d offset %q: %w", line, rec[pos[ColumnOffset]], report.ErrStructuralViolation)
		}
		entries = append(entries, Entry{Location: trial.Location(loc), Trial: trialNum, Offset: off})
	}
	return New(entries)
}

// parseTrial accepts integers written as floats ("3.0"), which spreadsheet
// exports produce, and rejects anything fractional.
func parseTrial(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("fractional trial number")
	}
	return int(f), nil
}

// FilterCollection drops every table at one of the given locations whose
// (location, trial) pair has no offset. Tables at other locations and keys
// that do not resolve are left alone. It returns the removed keys.
func (t *Table) FilterCollection(c *signal.Collection, resolver *trial.Resolver, locations ...trial.Location) []string {
	var removed []string
	c.DeleteFunc(func(key string, _ *signal.Table) bool {
		id, err := resolver.Resolve(key)
		if err != nil {
			return false
		}
		scoped := len(locations) == 0
		for _, l := range locations {
			if id.Location == l {
				scoped = true
				break
			}
		}
		if !scoped {
			return false
		}
		if _, ok := t.Lookup(id.Location, id.Trial); ok {
			return false
		}
		removed = append(removed, key)
		return true
	})
	return removed
}
