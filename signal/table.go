// Package signal holds the in-memory Signal Table and the owned, ordered
// collection of tables that every pipeline stage receives by pointer.
package signal

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/imu-gait/report"
)

// DefaultTimeColumn is used when a table is created without one.
const DefaultTimeColumn = "timestamp"

// Table is one trial/sensor recording. Columns are equal-length float
// slices in insertion order; rows are contiguous from 0.
type Table struct {
	timeColumn string
	order      []string
	columns    map[string][]float64
}

// NewTable creates an empty table whose time axis is timeColumn.
func NewTable(timeColumn string) *Table {
	if timeColumn == "" {
		timeColumn = DefaultTimeColumn
	}
	return &Table{
		timeColumn: timeColumn,
		columns:    make(map[string][]float64),
	}
}

// TimeColumn returns the name of the time axis.
func (t *Table) TimeColumn() string {
	return t.timeColumn
}

// SetTimeColumn switches the time axis to an existing column.
func (t *Table) SetTimeColumn(name string) error {
	if !t.Has(name) {
		return fmt.Errorf("time column %q: %w", name, report.ErrMissingColumn)
	}
	t.timeColumn = name
	return nil
}

// Len returns the row count.
func (t *Table) Len() int {
	if len(t.order) == 0 {
		return 0
	}
	return len(t.columns[t.order[0]])
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	return slices.Clone(t.order)
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the named column. The slice is shared with the table.
func (t *Table) Column(name string) ([]float64, error) {
	c, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("column %q: %w", name, report.ErrMissingColumn)
	}
	return c, nil
}

// Time returns the time column.
func (t *Table) Time() ([]float64, error) {
	return t.Column(t.timeColumn)
}

// SetColumn adds or overwrites a column. Overwriting keeps the original
// position so re-running a stage never duplicates its output.
func (t *Table) SetColumn(name string, values []float64) error {
	replacingOnly := len(t.order) == 1 && t.Has(name)
	if len(t.order) > 0 && !replacingOnly && len(values) != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d: %w",
			name, len(values), t.Len(), report.ErrStructuralViolation)
	}
	if !t.Has(name) {
		t.order = append(t.order, name)
	}
	t.columns[name] = values
	return nil
}

// NewFlagColumn (re)creates an all-zero indicator column.
func (t *Table) NewFlagColumn(name string) []float64 {
	flags := make([]float64, t.Len())
	// Length always matches, SetColumn cannot fail here.
	_ = t.SetColumn(name, flags)
	return flags
}

// DropColumn removes a column if present.
func (t *Table) DropColumn(name string) {
	if !t.Has(name) {
		return
	}
	delete(t.columns, name)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == name })
}

// Validate checks the structural invariants windowing relies on: equal
// column lengths and a non-decreasing time axis.
func (t *Table) Validate() error {
	n := t.Len()
	for _, name := range t.order {
		if len(t.columns[name]) != n {
			return fmt.Errorf("column %q has %d rows, expected %d: %w",
				name, len(t.columns[name]), n, report.ErrStructuralViolation)
		}
	}
	if times, ok := t.columns[t.timeColumn]; ok {
		for i := 1; i < len(times); i++ {
			if times[i] < times[i-1] {
				return fmt.Errorf("time column %q decreases at row %d: %w",
					t.timeColumn, i, report.ErrStructuralViolation)
			}
		}
	}
	return nil
}

// Slice returns a new table holding rows [start, end). Row indices of the
// result restart at 0.
func (t *Table) Slice(start, end int) *Table {
	start = min(max(start, 0), t.Len())
	end = min(end, t.Len())
	if end < start {
		end = start
	}
	out := NewTable(t.timeColumn)
	for _, name := range t.order {
		_ = out.SetColumn(name, slices.Clone(t.columns[name][start:end]))
	}
	return out
}

// Filter returns a new table keeping only rows where keep is true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := NewTable(t.timeColumn)
	for _, name := range t.order {
		src := t.columns[name]
		dst := make([]float64, len(idx))
		for j, i := range idx {
			dst[j] = src[i]
		}
		_ = out.SetColumn(name, dst)
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	return t.Slice(0, t.Len())
}
