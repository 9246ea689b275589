// Package align locates corresponding events across signals: around each
// reference peak of the same table, or across sensors of the same trial
// using a per-sensor time offset from the reference sensor's peak.
package align

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/offsets"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
	"github.com/RyanBlaney/imu-gait/trial"
)

// ReferenceMode selects which reference events a trial contributes.
type ReferenceMode int

const (
	// Dominant uses the single largest sample of the reference column.
	Dominant ReferenceMode = iota
	// AllPeaks uses every detected peak of the reference column.
	AllPeaks
)

func (m ReferenceMode) String() string {
	if m == AllPeaks {
		return "all_peaks"
	}
	return "dominant"
}

// ParseReferenceMode accepts "dominant" and "all_peaks".
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dominant":
		return Dominant, nil
	case "all_peaks", "all":
		return AllPeaks, nil
	default:
		return Dominant, fmt.Errorf("unknown reference mode %q", s)
	}
}

// AlignedFlagSuffix names the indicator column written by the offset aligner.
const AlignedFlagSuffix = "_aligned_peak"

// OffsetConfig configures cross-sensor alignment.
type OffsetConfig struct {
	ReferenceLocation trial.Location   `json:"reference_location"`
	TargetLocations   []trial.Location `json:"target_locations"`
	Column            string           `json:"column"`
	SamplingRate      float64          `json:"sampling_rate"`
	Margin            int              `json:"margin"`
	Polarity          peaks.Polarity   `json:"polarity"`
	Mode              ReferenceMode    `json:"mode"`

	// PeakOptions drives reference detection in AllPeaks mode. Window
	// searches use only its height bounds.
	PeakOptions peaks.Options `json:"peak_options"`
}

// DefaultOffsetConfig aligns left tibia against the right tibia's largest
// resultant sample at 500 Hz with a 50-sample margin.
func DefaultOffsetConfig() *OffsetConfig {
	return &OffsetConfig{
		ReferenceLocation: trial.RightTibia,
		TargetLocations:   []trial.Location{trial.LeftTibia},
		Column:            "res_g",
		SamplingRate:      500,
		Margin:            50,
		Polarity:          peaks.Positive,
		Mode:              Dominant,
		PeakOptions: peaks.Options{
			MinHeight:   peaks.Height(1.0),
			MinDistance: 281,
		},
	}
}

// Reference is the cached reference event set for one trial number.
type Reference struct {
	Trial int          `json:"trial"`
	Key   string       `json:"key"`
	Peaks []peaks.Peak `json:"peaks"`
}

// Window records one search around a reference event in one table.
type Window struct {
	Key            string         `json:"key"`
	Location       trial.Location `json:"location"`
	Trial          int            `json:"trial"`
	Offset         float64        `json:"offset"`
	ReferenceIndex int            `json:"reference_index"`
	ReferenceTime  float64        `json:"reference_time"`
	TargetIndex    int            `json:"target_index"`
	Start          int            `json:"start"`
	End            int            `json:"end"`
	StartTime      float64        `json:"start_time"`
	EndTime        float64        `json:"end_time"`
	Found          bool           `json:"found"`
	Peak           peaks.Peak     `json:"peak"`
}

// OffsetResult is everything one Align call produced.
type OffsetResult struct {
	References map[int]Reference   `json:"references"`
	Windows    []Window            `json:"windows"`
	Rows       []summary.Row       `json:"rows"`
	Counts     []summary.PeakCount `json:"counts"`
}

// OffsetAligner implements the two-pass cross-sensor alignment: pass one
// caches reference events per trial number, pass two searches every
// reference and target table around those events.
type OffsetAligner struct {
	config    *OffsetConfig
	resolver  *trial.Resolver
	collector *report.Collector
	logger    logging.Logger
}

// NewOffsetAligner creates an aligner. A nil config uses the defaults and a
// nil resolver uses the built-in schemas.
func NewOffsetAligner(config *OffsetConfig, resolver *trial.Resolver, collector *report.Collector) *OffsetAligner {
	if config == nil {
		config = DefaultOffsetConfig()
	}
	if resolver == nil {
		resolver = trial.NewResolver()
	}
	return &OffsetAligner{
		config:    config,
		resolver:  resolver,
		collector: collector,
		logger: logging.WithFields(logging.Fields{
			"component": "offset_aligner",
		}),
	}
}

type resolved struct {
	key   string
	id    trial.Identity
	table *signal.Table
}

// scoped resolves every key in lexical order and keeps the tables at the
// reference or a target location. Unresolvable keys become diagnostics.
func (a *OffsetAligner) scoped(c *signal.Collection) []resolved {
	keys := c.Keys()
	slices.Sort(keys)

	var out []resolved
	for _, key := range keys {
		id, err := a.resolver.Resolve(key)
		if err != nil {
			a.collector.Record("offset_align", key, "", err)
			continue
		}
		if id.Location != a.config.ReferenceLocation && !slices.Contains(a.config.TargetLocations, id.Location) {
			continue
		}
		t, _ := c.Get(key)
		out = append(out, resolved{key: key, id: id, table: t})
	}
	return out
}

// BuildReferences runs pass one. Two reference tables sharing a trial number,
// or a structurally broken reference table, abort with an error wrapping
// report.ErrStructuralViolation.
func (a *OffsetAligner) BuildReferences(c *signal.Collection) (map[int]Reference, error) {
	return a.buildReferences(a.scoped(c))
}

func (a *OffsetAligner) buildReferences(tables []resolved) (map[int]Reference, error) {
	refs := make(map[int]Reference)
	for _, r := range tables {
		if r.id.Location != a.config.ReferenceLocation {
			continue
		}
		if prev, ok := refs[r.id.Trial]; ok {
			return nil, fmt.Errorf("trial %d has reference tables %q and %q: %w",
				r.id.Trial, prev.Key, r.key, report.ErrStructuralViolation)
		}
		if err := r.table.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", r.key, err)
		}

		values, err := r.table.Column(a.config.Column)
		if err != nil {
			a.collector.Record("offset_align", r.key, a.config.Column, err)
			continue
		}
		times, _ := r.table.Time()

		var found []peaks.Peak
		switch a.config.Mode {
		case AllPeaks:
			found = peaks.Detect(values, times, peaks.Positive, a.config.PeakOptions)
		default:
			if i := common.ArgMax(values); i >= 0 {
				ts := math.NaN()
				if i < len(times) {
					ts = times[i]
				}
				found = []peaks.Peak{{Index: i, Value: values[i], Height: values[i], Timestamp: ts}}
			}
		}
		if len(found) == 0 {
			a.collector.Record("offset_align", r.key, a.config.Column,
				fmt.Errorf("no reference event in trial %d: %w", r.id.Trial, report.ErrEmptyPeakSet))
			continue
		}
		refs[r.id.Trial] = Reference{Trial: r.id.Trial, Key: r.key, Peaks: found}
	}
	return refs, nil
}

// Align runs both passes over c using offs. It writes one flag per located
// event into <column>_aligned_peak of each searched table and never reads
// results of pass two back into the reference cache.
func (a *OffsetAligner) Align(c *signal.Collection, offs *offsets.Table) (*OffsetResult, error) {
	tables := a.scoped(c)
	refs, err := a.buildReferences(tables)
	if err != nil {
		return nil, err
	}

	result := &OffsetResult{References: refs}
	for _, r := range tables {
		ref, ok := refs[r.id.Trial]
		if !ok {
			a.collector.Record("offset_align", r.key, "",
				fmt.Errorf("no reference event cached for trial %d: %w", r.id.Trial, report.ErrNoOffsetFound))
			continue
		}
		offset, err := offs.Require(r.id.Location, r.id.Trial)
		if err != nil {
			a.collector.Record("offset_align", r.key, "", err)
			continue
		}
		if err := r.table.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", r.key, err)
		}
		values, err := r.table.Column(a.config.Column)
		if err != nil {
			a.collector.Record("offset_align", r.key, a.config.Column, err)
			continue
		}
		times, _ := r.table.Time()

		windows := a.alignTable(r, ref, offset, values, times)
		result.Windows = append(result.Windows, windows...)

		var located []peaks.Peak
		for _, w := range windows {
			if w.Found {
				located = append(located, w.Peak)
			}
		}
		variable := a.config.Column + a.averageSuffix()
		avg := peaks.Mean(located)
		if len(located) == 0 {
			a.collector.Record("offset_align", r.key, a.config.Column,
				fmt.Errorf("no peak inside any of %d windows: %w", len(windows), report.ErrEmptyPeakSet))
		}
		result.Rows = append(result.Rows, summary.Row{Key: r.key, Variable: variable, Value: avg})
		result.Counts = append(result.Counts,
			summary.NewPeakCount(r.key, a.config.Column+AlignedFlagSuffix, len(ref.Peaks), countFlags(r.table, a.config.Column+AlignedFlagSuffix)))
	}

	a.logger.Info("offset alignment finished", logging.Fields{
		"references": len(refs),
		"windows":    len(result.Windows),
	})
	return result, nil
}

func (a *OffsetAligner) averageSuffix() string {
	switch a.config.Polarity {
	case peaks.Negative:
		return "_avg_aligned_neg_peak"
	case peaks.Absolute:
		return "_avg_aligned_abs_peak"
	default:
		return "_avg_aligned_peak"
	}
}

func (a *OffsetAligner) alignTable(r resolved, ref Reference, offset float64, values, times []float64) []Window {
	flags := r.table.NewFlagColumn(a.config.Column + AlignedFlagSuffix)
	shift := int(math.Round(offset * a.config.SamplingRate))
	searchOpts := a.config.PeakOptions.WithoutDistance()

	windows := make([]Window, 0, len(ref.Peaks))
	for _, rp := range ref.Peaks {
		target := rp.Index + shift
		w := Window{
			Key:            r.key,
			Location:       r.id.Location,
			Trial:          r.id.Trial,
			Offset:         offset,
			ReferenceIndex: rp.Index,
			ReferenceTime:  rp.Timestamp,
			TargetIndex:    target,
			Start:          max(0, target-a.config.Margin),
			End:            min(len(values)-1, target+a.config.Margin),
			StartTime:      math.NaN(),
			EndTime:        math.NaN(),
		}
		if w.Start <= w.End {
			if w.End < len(times) {
				w.StartTime, w.EndTime = times[w.Start], times[w.End]
			}
			found := peaks.Detect(values[w.Start:w.End+1], nil, a.config.Polarity, searchOpts)
			if best, ok := peaks.Dominant(found); ok {
				w.Peak = peaks.Shift([]peaks.Peak{best}, w.Start, values, times)[0]
				w.Found = true
				flags[w.Peak.Index] = 1
			}
		}
		windows = append(windows, w)
	}
	return windows
}

func countFlags(t *signal.Table, name string) int {
	idx, err := peaks.FlagIndices(t, name)
	if err != nil {
		return 0
	}
	return len(idx)
}
