package peaks

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/signal"
)

// Detector runs peak detection against Signal Table columns and records the
// result as indicator columns.
type Detector struct {
	opts       Options
	thresholds *ThresholdTable
	logger     logging.Logger
}

// NewDetector creates a detector with fixed options.
func NewDetector(opts Options) *Detector {
	return &Detector{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "peak_detector",
		}),
	}
}

// WithThresholds makes the detector take height bounds per table key from
// tbl, falling back to the fixed options for keys it does not list.
func (d *Detector) WithThresholds(tbl *ThresholdTable) *Detector {
	d.thresholds = tbl
	return d
}

// Options returns the effective options for key.
func (d *Detector) Options(key string) Options {
	return d.thresholds.Apply(key, d.opts)
}

// DetectColumn detects peaks of one column and writes a 0/1 indicator column
// named column+polarity.FlagSuffix(), overwriting any earlier run. A missing
// column wraps report.ErrMissingColumn and leaves the table unchanged.
func (d *Detector) DetectColumn(key string, t *signal.Table, column string, polarity Polarity) ([]Peak, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	times, _ := t.Time()

	found := Detect(values, times, polarity, d.Options(key))

	flagName := column + polarity.FlagSuffix()
	flags := t.NewFlagColumn(flagName)
	for _, p := range found {
		flags[p.Index] = 1
	}

	d.logger.Debug("peaks detected", logging.Fields{
		"key":      key,
		"column":   column,
		"polarity": polarity.String(),
		"count":    len(found),
	})
	return found, nil
}

// FlagIndices returns the rows of an indicator column set to 1.
func FlagIndices(t *signal.Table, flagColumn string) ([]int, error) {
	flags, err := t.Column(flagColumn)
	if err != nil {
		return nil, err
	}
	var out []int
	for i, v := range flags {
		if v == 1 {
			out = append(out, i)
		}
	}
	return out, nil
}

// Thresholds is a height range for one table.
type Thresholds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ThresholdTable maps table keys to height ranges. A NaN bound leaves the
// corresponding base option untouched.
type ThresholdTable struct {
	entries map[string]Thresholds
}

// NewThresholdTable creates an empty table.
func NewThresholdTable() *ThresholdTable {
	return &ThresholdTable{entries: make(map[string]Thresholds)}
}

// Set stores the range for key.
func (tt *ThresholdTable) Set(key string, th Thresholds) {
	tt.entries[key] = th
}

// Get returns the range for key.
func (tt *ThresholdTable) Get(key string) (Thresholds, bool) {
	if tt == nil {
		return Thresholds{}, false
	}
	th, ok := tt.entries[key]
	return th, ok
}

// Len returns the number of keys.
func (tt *ThresholdTable) Len() int {
	if tt == nil {
		return 0
	}
	return len(tt.entries)
}

// Apply overrides the height bounds of base with the range stored for key.
func (tt *ThresholdTable) Apply(key string, base Options) Options {
	th, ok := tt.Get(key)
	if !ok {
		return base
	}
	if !math.IsNaN(th.Min) {
		base.MinHeight = Height(th.Min)
	}
	if !math.IsNaN(th.Max) {
		base.MaxHeight = Height(th.Max)
	}
	return base
}
