// Package summary holds the long-format output rows every measure emits,
// the peak-count audit rows, and the shapes they are exported in.
package summary

import (
	"cmp"
	"math"
	"slices"
)

// Undefined marks a measure that could not be computed (empty peak set,
// failed estimator). It is written as NA.
var Undefined = math.NaN()

// IsUndefined reports whether v is the undefined marker.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// Row is one (key, variable, value) observation.
type Row struct {
	Key      string  `json:"key" yaml:"key"`
	Variable string  `json:"variable" yaml:"variable"`
	Value    float64 `json:"value" yaml:"value"`
}

// PeakCount compares how many reference events a column had with how many
// were located in the aligned column.
type PeakCount struct {
	Key        string `json:"key" yaml:"key"`
	Variable   string `json:"variable" yaml:"variable"`
	Reference  int    `json:"reference" yaml:"reference"`
	Aligned    int    `json:"aligned" yaml:"aligned"`
	Difference int    `json:"difference" yaml:"difference"`
}

// NewPeakCount fills Difference as reference - aligned.
func NewPeakCount(key, variable string, reference, aligned int) PeakCount {
	return PeakCount{
		Key:        key,
		Variable:   variable,
		Reference:  reference,
		Aligned:    aligned,
		Difference: reference - aligned,
	}
}

// Sort orders rows by key, then variable, in place and stably.
func Sort(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Variable, b.Variable)
	})
}

// Filter returns the rows whose variable satisfies keep.
func Filter(rows []Row, keep func(variable string) bool) []Row {
	var out []Row
	for _, r := range rows {
		if keep(r.Variable) {
			out = append(out, r)
		}
	}
	return out
}

// Wide is a key by variable matrix built from long rows.
type Wide struct {
	Keys      []string
	Variables []string
	values    map[string]map[string]float64
}

// Pivot spreads rows into a Wide table. Keys and variables keep first-seen
// order; a repeated (key, variable) keeps the last value.
func Pivot(rows []Row) *Wide {
	w := &Wide{values: make(map[string]map[string]float64)}
	seenVar := make(map[string]bool)
	for _, r := range rows {
		byVar, ok := w.values[r.Key]
		if !ok {
			byVar = make(map[string]float64)
			w.values[r.Key] = byVar
			w.Keys = append(w.Keys, r.Key)
		}
		byVar[r.Variable] = r.Value
		if !seenVar[r.Variable] {
			seenVar[r.Variable] = true
			w.Variables = append(w.Variables, r.Variable)
		}
	}
	return w
}

// Value returns the cell for (key, variable); missing cells are Undefined.
func (w *Wide) Value(key, variable string) float64 {
	v, ok := w.values[key][variable]
	if !ok {
		return Undefined
	}
	return v
}
