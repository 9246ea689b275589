// Package measures turns prepared tables into Summary Rows: average peak
// heights, stride timing statistics, RMS, sample entropy and a spectral
// cadence estimate.
package measures

import (
	"fmt"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/algorithms/spectral"
	"github.com/RyanBlaney/imu-gait/algorithms/stats"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
)

// Columns of event tables.
const (
	PeakValuesColumn  = "peak_values"
	StrideTimesColumn = "stride_times"
)

// Builder computes summary measures over a collection. It only reads
// tables, except AveragePeaks which records indicator columns.
type Builder struct {
	collector *report.Collector
	logger    logging.Logger
}

// NewBuilder creates a builder reporting problems to collector.
func NewBuilder(collector *report.Collector) *Builder {
	return &Builder{
		collector: collector,
		logger: logging.WithFields(logging.Fields{
			"component": "measures",
		}),
	}
}

// AveragePeaks detects peaks of each column and emits
// <col>_avg_peak, <col>_avg_neg_peak or <col>_avg_abs_peak. The detected
// peaks of the first column are also returned as per-key event tables
// (time axis plus peak_values) for stride timing.
func (b *Builder) AveragePeaks(c *signal.Collection, columns []string, polarity peaks.Polarity, det *peaks.Detector) ([]summary.Row, *signal.Collection) {
	var rows []summary.Row
	events := signal.NewCollection()

	c.Each(func(key string, t *signal.Table) bool {
		for i, col := range columns {
			found, err := det.DetectColumn(key, t, col, polarity)
			if err != nil {
				b.collector.Record("average_peaks", key, col, err)
				continue
			}
			if len(found) == 0 {
				b.collector.Record("average_peaks", key, col,
					fmt.Errorf("no %s peaks: %w", polarity, report.ErrEmptyPeakSet))
			}
			rows = append(rows, summary.Row{
				Key:      key,
				Variable: col + polarity.AverageSuffix(),
				Value:    peaks.Mean(found),
			})
			if i == 0 {
				events.Set(key, eventTable(t.TimeColumn(), found))
			}
		}
		return true
	})
	return rows, events
}

func eventTable(timeColumn string, found []peaks.Peak) *signal.Table {
	times := make([]float64, len(found))
	values := make([]float64, len(found))
	for i, p := range found {
		times[i] = p.Timestamp
		values[i] = p.Value
	}
	t := signal.NewTable(timeColumn)
	_ = t.SetColumn(timeColumn, times)
	_ = t.SetColumn(PeakValuesColumn, values)
	return t
}

// StrideTimes converts each event table into a table of inter-event
// intervals. Row i holds the time of event i+1 and stride_times[i] is its
// distance from event i; the undefined leading interval is dropped.
func (b *Builder) StrideTimes(events *signal.Collection) *signal.Collection {
	out := signal.NewCollection()
	events.Each(func(key string, t *signal.Table) bool {
		times, err := t.Time()
		if err != nil {
			b.collector.Record("stride_times", key, t.TimeColumn(), err)
			return true
		}
		if len(times) < 2 {
			b.collector.Record("stride_times", key, t.TimeColumn(),
				fmt.Errorf("%d events, need at least 2: %w", len(times), report.ErrEmptyPeakSet))
			return true
		}

		st := t.Slice(1, t.Len())
		_ = st.SetColumn(StrideTimesColumn, common.Diff(times))
		out.Set(key, st)
		return true
	})
	b.logger.Debug("stride times built", logging.Fields{
		"tables": out.Len(),
	})
	return out
}

// StrideVariables emits <col>_mean, <col>_sd, <col>_cv (percent),
// <col>_fsi (DFA alpha) and <col>_spm (events per minute of totalMinutes).
// A failed DFA yields an undefined fsi and an EstimatorFailure diagnostic.
func (b *Builder) StrideVariables(c *signal.Collection, column string, totalMinutes float64) []summary.Row {
	var rows []summary.Row
	dfa := stats.NewDFA()

	c.Each(func(key string, t *signal.Table) bool {
		st, err := t.Column(column)
		if err != nil {
			b.collector.Record("stride_variables", key, column, err)
			return true
		}

		mean := common.Mean(st)
		sd := common.StandardDeviation(st)
		fsi, err := dfa.Compute(st)
		if err != nil {
			b.collector.Record("stride_variables", key, column+"_fsi", err)
			fsi = summary.Undefined
		}
		spm := summary.Undefined
		if totalMinutes > 0 {
			spm = float64(len(st)) / totalMinutes
		}

		rows = append(rows,
			summary.Row{Key: key, Variable: column + "_mean", Value: mean},
			summary.Row{Key: key, Variable: column + "_sd", Value: sd},
			summary.Row{Key: key, Variable: column + "_cv", Value: common.CoefficientOfVariation(st)},
			summary.Row{Key: key, Variable: column + "_fsi", Value: fsi},
			summary.Row{Key: key, Variable: column + "_spm", Value: spm},
		)
		return true
	})
	return rows
}

// RMS emits <col>_rms for each column.
func (b *Builder) RMS(c *signal.Collection, columns []string) []summary.Row {
	var rows []summary.Row
	c.Each(func(key string, t *signal.Table) bool {
		for _, col := range columns {
			values, err := t.Column(col)
			if err != nil {
				b.collector.Record("rms", key, col, err)
				continue
			}
			rows = append(rows, summary.Row{Key: key, Variable: col + "_rms", Value: common.RMS(values)})
		}
		return true
	})
	return rows
}

// SampleEntropy emits <col>_sampen for each column. Estimator failures are
// recorded and produce an undefined value.
func (b *Builder) SampleEntropy(c *signal.Collection, columns []string, params stats.SampleEntropyParams) []summary.Row {
	var rows []summary.Row
	se := stats.NewSampleEntropyWithParams(params)
	c.Each(func(key string, t *signal.Table) bool {
		for _, col := range columns {
			values, err := t.Column(col)
			if err != nil {
				b.collector.Record("sample_entropy", key, col, err)
				continue
			}
			v, err := se.Compute(values)
			if err != nil {
				b.collector.Record("sample_entropy", key, col, err)
				v = summary.Undefined
			}
			rows = append(rows, summary.Row{Key: key, Variable: col + "_sampen", Value: v})
		}
		return true
	})
	return rows
}

// DominantFrequency emits <col>_dominant_hz and <col>_spectral_spm, the
// strongest periodicity of the column between minHz and maxHz expressed in
// hertz and in events per minute.
func (b *Builder) DominantFrequency(c *signal.Collection, column string, sampleRate, minHz, maxHz float64) []summary.Row {
	var rows []summary.Row
	c.Each(func(key string, t *signal.Table) bool {
		values, err := t.Column(column)
		if err != nil {
			b.collector.Record("dominant_frequency", key, column, err)
			return true
		}
		hz, spm := summary.Undefined, summary.Undefined
		d, err := spectral.FindDominantFrequency(values, sampleRate, minHz, maxHz)
		if err != nil {
			b.collector.Record("dominant_frequency", key, column, err)
		} else {
			hz, spm = d.Hz, d.PerMinute()
		}
		rows = append(rows,
			summary.Row{Key: key, Variable: column + "_dominant_hz", Value: hz},
			summary.Row{Key: key, Variable: column + "_spectral_spm", Value: spm},
		)
		return true
	})
	return rows
}
