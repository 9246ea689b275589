package align

import (
	"fmt"

	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
)

// ReferenceFlagColumn holds the reference peaks found by the windowed aligner.
const ReferenceFlagColumn = "resultant_peaks"

// WindowedConfig configures same-table alignment around reference peaks.
type WindowedConfig struct {
	ReferenceColumn string           `json:"reference_column"`
	Columns         []string         `json:"columns"`
	Polarities      []peaks.Polarity `json:"polarities"`
	WindowSize      int              `json:"window_size"`
	PeakOptions     peaks.Options    `json:"peak_options"`
}

// DefaultWindowedConfig searches the three g axes for absolute and negative
// peaks inside a 150-sample window around each resultant peak.
func DefaultWindowedConfig() *WindowedConfig {
	return &WindowedConfig{
		ReferenceColumn: "res_g",
		Columns:         []string{"ax_g", "ay_g", "az_g"},
		Polarities:      []peaks.Polarity{peaks.Absolute, peaks.Negative},
		WindowSize:      150,
		PeakOptions: peaks.Options{
			MinHeight:   peaks.Height(1.0),
			MinDistance: 281,
		},
	}
}

// WindowedResult holds the summary and audit rows of one Align call.
type WindowedResult struct {
	Rows   []summary.Row       `json:"rows"`
	Counts []summary.PeakCount `json:"counts"`
}

// WindowedAligner finds, for every reference peak of a table, the dominant
// peak of each target column within window_size/2 samples either side.
type WindowedAligner struct {
	config    *WindowedConfig
	collector *report.Collector
	logger    logging.Logger
}

// NewWindowedAligner creates an aligner; nil config uses the defaults.
func NewWindowedAligner(config *WindowedConfig, collector *report.Collector) *WindowedAligner {
	if config == nil {
		config = DefaultWindowedConfig()
	}
	return &WindowedAligner{
		config:    config,
		collector: collector,
		logger: logging.WithFields(logging.Fields{
			"component": "windowed_aligner",
		}),
	}
}

// WindowedFlagColumn names the indicator column for column and polarity.
func WindowedFlagColumn(column string, polarity peaks.Polarity) string {
	return column + windowedSuffix(polarity)
}

// WindowedAverageVariable names the summary variable for column and polarity.
func WindowedAverageVariable(column string, polarity peaks.Polarity) string {
	return column + "_avg" + windowedSuffix(polarity)
}

func windowedSuffix(p peaks.Polarity) string {
	switch p {
	case peaks.Negative:
		return "_windowed_neg_peak"
	case peaks.Absolute:
		return "_windowed_abs_peak"
	default:
		return "_windowed_peak"
	}
}

// Align processes every table of c independently. Tables without the
// reference column and missing target columns are skipped with a
// diagnostic; a structurally broken table aborts with an error.
func (w *WindowedAligner) Align(c *signal.Collection) (*WindowedResult, error) {
	result := &WindowedResult{}
	var failure error
	c.Each(func(key string, t *signal.Table) bool {
		if err := t.Validate(); err != nil {
			failure = fmt.Errorf("%s: %w", key, err)
			return false
		}
		w.alignTable(key, t, result)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return result, nil
}

func (w *WindowedAligner) alignTable(key string, t *signal.Table, result *WindowedResult) {
	refValues, err := t.Column(w.config.ReferenceColumn)
	if err != nil {
		w.collector.Record("windowed_align", key, w.config.ReferenceColumn, err)
		return
	}
	times, _ := t.Time()
	refs := peaks.Detect(refValues, times, peaks.Positive, w.config.PeakOptions)

	refFlags := t.NewFlagColumn(ReferenceFlagColumn)
	for _, p := range refs {
		refFlags[p.Index] = 1
	}

	half := max(w.config.WindowSize/2, 0)
	searchOpts := w.config.PeakOptions.WithoutDistance()
	n := t.Len()

	for _, polarity := range w.config.Polarities {
		for _, col := range w.config.Columns {
			values, err := t.Column(col)
			if err != nil {
				w.collector.Record("windowed_align", key, col, err)
				continue
			}

			flagName := WindowedFlagColumn(col, polarity)
			flags := t.NewFlagColumn(flagName)
			var located []peaks.Peak
			for _, rp := range refs {
				start := max(0, rp.Index-half)
				end := min(n-1, rp.Index+half)
				found := peaks.Detect(values[start:end+1], nil, polarity, searchOpts)
				if best, ok := peaks.Dominant(found); ok {
					best.Index += start
					flags[best.Index] = 1
					located = append(located, best)
				}
			}

			if len(located) == 0 {
				w.collector.Record("windowed_align", key, col,
					fmt.Errorf("no %s peak in any of %d windows: %w", polarity, len(refs), report.ErrEmptyPeakSet))
			}
			result.Rows = append(result.Rows, summary.Row{
				Key:      key,
				Variable: WindowedAverageVariable(col, polarity),
				Value:    peaks.Mean(located),
			})
			result.Counts = append(result.Counts,
				summary.NewPeakCount(key, flagName, len(refs), countFlags(t, flagName)))
		}
	}

	w.logger.Debug("windowed alignment done", logging.Fields{
		"key":             key,
		"reference_peaks": len(refs),
	})
}
