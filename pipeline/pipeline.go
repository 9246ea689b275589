// Package pipeline runs the full batch: trial selection, preprocessing,
// peak detection, alignment and the summary measures.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/imu-gait/align"
	"github.com/RyanBlaney/imu-gait/config"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/measures"
	"github.com/RyanBlaney/imu-gait/offsets"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/preprocess"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
	"github.com/RyanBlaney/imu-gait/trial"
)

// Result is everything one run produced.
type Result struct {
	Rows     []summary.Row           `json:"rows"`
	Counts   []summary.PeakCount     `json:"counts"`
	Windows  []align.Window          `json:"windows"`
	Outliers []measures.OutlierRow   `json:"outliers"`
	Removed  []measures.RemovedCount `json:"removed"`
	Export   []summary.ExportRow     `json:"export"`
	Dropped  []string                `json:"dropped"`
	Report   *report.RunReport       `json:"report"`
}

// Pipeline wires the stages together from one config.
type Pipeline struct {
	config    *config.Config
	resolver  *trial.Resolver
	collector *report.Collector
	logger    logging.Logger
}

// New creates a pipeline. A nil config uses the defaults and a nil
// collector is replaced by a fresh one.
func New(cfg *config.Config, collector *report.Collector) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if collector == nil {
		collector = report.NewCollector()
	}
	return &Pipeline{
		config:    cfg,
		resolver:  trial.NewResolver(),
		collector: collector,
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline",
		}),
	}
}

// Collector returns the diagnostics sink shared by all stages.
func (p *Pipeline) Collector() *report.Collector {
	return p.collector
}

// Run processes c in place. offs may be nil when offset alignment is
// disabled. Cancellation is checked between stages.
func (p *Pipeline) Run(ctx context.Context, c *signal.Collection, offs *offsets.Table) (*Result, error) {
	cfg := p.config
	res := &Result{Report: report.NewRunReport(time.Now())}
	res.Report.Settings = cfg.Settings()

	logger := p.logger.WithFields(logging.Fields{
		"function": "Run",
		"run_id":   res.Report.RunID,
		"tables":   c.Len(),
	})
	logger.Info("starting run")

	res.Dropped = append(res.Dropped, preprocess.RemoveTrials(c, p.resolver, cfg.BadTrials)...)

	var offsetCfg *align.OffsetConfig
	if cfg.OffsetAlign.Enabled {
		if offs == nil {
			return nil, fmt.Errorf("offset alignment enabled without an offset table")
		}
		var err error
		if offsetCfg, err = cfg.OffsetAligner(); err != nil {
			return nil, err
		}
		if offsetCfg.SamplingRate != cfg.Preprocess.SampleRate {
			logger.Warn("offset alignment rate differs from preprocessing rate", logging.Fields{
				"offset_sampling_rate":   offsetCfg.SamplingRate,
				"preprocess_sample_rate": cfg.Preprocess.SampleRate,
			})
		}
		scope := append([]trial.Location{offsetCfg.ReferenceLocation}, offsetCfg.TargetLocations...)
		res.Dropped = append(res.Dropped, offs.FilterCollection(c, p.resolver, scope...)...)
	}
	if len(res.Dropped) > 0 {
		logger.Info("dropped tables", logging.Fields{"keys": res.Dropped})
	}
	res.Report.Tables = c.Len()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := preprocess.New(cfg.Preprocess.Build(), p.collector).Run(c); err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := measures.NewBuilder(p.collector)
	events, err := p.peakStage(b, c, res)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.alignStage(c, offs, offsetCfg, res); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.strideStage(b, events, res); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.signalStage(b, c, res)

	summary.Sort(res.Rows)
	res.Export = summary.Export(res.Rows, p.resolver, p.collector)
	res.Report.SummaryRows = len(res.Rows)
	res.Report.Finish(p.collector, time.Now())

	logger.Info("run finished", logging.Fields{
		"rows":        len(res.Rows),
		"diagnostics": p.collector.Len(),
	})
	return res, nil
}

// peakStage emits the average peak rows and returns the positive-polarity
// event tables of the first peak column.
func (p *Pipeline) peakStage(b *measures.Builder, c *signal.Collection, res *Result) (*signal.Collection, error) {
	cfg := p.config
	if len(cfg.Peaks.Columns) == 0 {
		return signal.NewCollection(), nil
	}
	polarities, err := cfg.Peaks.ParsedPolarities()
	if err != nil {
		return nil, err
	}

	det := peaks.NewDetector(cfg.Peaks.Options())
	if cfg.Peaks.ThresholdsFromOutliers {
		fence, err := cfg.Outliers.ParsedFence()
		if err != nil {
			return nil, err
		}
		col := cfg.Peaks.Columns[0]
		rows := b.SummarizeOutliers(c, []string{col}, cfg.Outliers.K, cfg.Outliers.Z)
		res.Outliers = append(res.Outliers, rows...)
		det = det.WithThresholds(measures.ThresholdsFromOutliers(rows, col, fence))
	}

	var events *signal.Collection
	for _, pol := range polarities {
		rows, ev := b.AveragePeaks(c, cfg.Peaks.Columns, pol, det)
		res.Rows = append(res.Rows, rows...)
		if events == nil || pol == peaks.Positive {
			events = ev
		}
	}
	return events, nil
}

func (p *Pipeline) alignStage(c *signal.Collection, offs *offsets.Table, offsetCfg *align.OffsetConfig, res *Result) error {
	cfg := p.config
	if cfg.Windowed.Enabled {
		wc, err := cfg.WindowedAligner()
		if err != nil {
			return err
		}
		wr, err := align.NewWindowedAligner(wc, p.collector).Align(c)
		if err != nil {
			return fmt.Errorf("windowed alignment: %w", err)
		}
		res.Rows = append(res.Rows, wr.Rows...)
		res.Counts = append(res.Counts, wr.Counts...)
	}
	if offsetCfg != nil {
		ores, err := align.NewOffsetAligner(offsetCfg, p.resolver, p.collector).Align(c, offs)
		if err != nil {
			return fmt.Errorf("offset alignment: %w", err)
		}
		res.Rows = append(res.Rows, ores.Rows...)
		res.Counts = append(res.Counts, ores.Counts...)
		res.Windows = append(res.Windows, ores.Windows...)
	}
	return nil
}

func (p *Pipeline) strideStage(b *measures.Builder, events *signal.Collection, res *Result) error {
	cfg := p.config
	if !cfg.Stride.Enabled || events.Len() == 0 {
		return nil
	}
	strides := b.StrideTimes(events)
	if cfg.Stride.RemoveOutliers {
		fence, err := cfg.Outliers.ParsedFence()
		if err != nil {
			return err
		}
		rows := b.SummarizeOutliers(strides, []string{measures.StrideTimesColumn}, cfg.Outliers.K, cfg.Outliers.Z)
		res.Outliers = append(res.Outliers, rows...)
		var removed []measures.RemovedCount
		strides, removed = b.RemoveOutliers(strides, measures.StrideTimesColumn,
			measures.BoundsByKey(rows, measures.StrideTimesColumn, fence))
		res.Removed = append(res.Removed, removed...)
	}
	res.Rows = append(res.Rows, b.StrideVariables(strides, measures.StrideTimesColumn, cfg.Stride.TotalMinutes)...)
	return nil
}

func (p *Pipeline) signalStage(b *measures.Builder, c *signal.Collection, res *Result) {
	cfg := p.config
	if len(cfg.RMS.Columns) > 0 {
		res.Rows = append(res.Rows, b.RMS(c, cfg.RMS.Columns)...)
	}
	if len(cfg.Entropy.Columns) > 0 {
		res.Rows = append(res.Rows, b.SampleEntropy(c, cfg.Entropy.Columns, cfg.Entropy.Params())...)
	}
	if cfg.Spectral.Enabled && cfg.Spectral.Column != "" {
		res.Rows = append(res.Rows, b.DominantFrequency(c, cfg.Spectral.Column,
			cfg.Preprocess.SampleRate, cfg.Spectral.MinHz, cfg.Spectral.MaxHz)...)
	}
}
