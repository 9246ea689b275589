package config

import (
	"fmt"

	"github.com/RyanBlaney/imu-gait/algorithms/stats"
	"github.com/RyanBlaney/imu-gait/align"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/measures"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/preprocess"
	"github.com/RyanBlaney/imu-gait/trial"
)

// NewLogger builds the logger selected by log.backend.
func (c LogConfig) NewLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	switch c.Backend {
	case "", "default":
		l := logging.NewDefaultLogger()
		l.SetLevel(level)
		return l, nil
	case "zap":
		z, err := logging.NewZapLogger(logging.ZapConfig{
			Level:             c.Level,
			Encoding:          c.Encoding,
			Development:       c.Development,
			DisableCaller:     c.DisableCaller,
			DisableStacktrace: c.DisableStacktrace,
		})
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}
		return z, nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", c.Backend)
	}
}

// Build converts the section into preprocessor settings.
func (c PreprocessConfig) Build() *preprocess.Config {
	out := &preprocess.Config{
		SampleRate:        c.SampleRate,
		Cutoff:            c.Cutoff,
		Order:             c.Order,
		ResultantColumn:   c.ResultantColumn,
		FilterColumns:     c.FilterColumns,
		MeanCenterColumns: c.MeanCenterColumns,
		ConvertToG:        c.ConvertToG,
		CropSeconds:       c.CropSeconds,
		ShiftTime:         c.ShiftTime,
	}
	copy(out.AxisColumns[:], c.AxisColumns)
	return out
}

// Options returns the base peak detection options.
func (c PeaksConfig) Options() peaks.Options {
	o := peaks.Options{MinDistance: c.MinDistance}
	if c.MinHeight != nil {
		o.MinHeight = peaks.Height(*c.MinHeight)
	}
	if c.MaxHeight != nil {
		o.MaxHeight = peaks.Height(*c.MaxHeight)
	}
	return o
}

// ParsedPolarities returns the configured polarities, positive when none.
func (c PeaksConfig) ParsedPolarities() ([]peaks.Polarity, error) {
	ps, err := parsePolarities(c.Polarities)
	if err != nil {
		return nil, fmt.Errorf("peaks.polarities: %w", err)
	}
	if len(ps) == 0 {
		ps = []peaks.Polarity{peaks.Positive}
	}
	return ps, nil
}

func parsePolarities(in []string) ([]peaks.Polarity, error) {
	out := make([]peaks.Polarity, 0, len(in))
	for _, s := range in {
		p, err := peaks.ParsePolarity(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// WindowedAligner converts the windowed section into aligner settings.
func (c *Config) WindowedAligner() (*align.WindowedConfig, error) {
	ps, err := parsePolarities(c.Windowed.Polarities)
	if err != nil {
		return nil, fmt.Errorf("windowed.polarities: %w", err)
	}
	return &align.WindowedConfig{
		ReferenceColumn: c.Windowed.ReferenceColumn,
		Columns:         c.Windowed.Columns,
		Polarities:      ps,
		WindowSize:      c.Windowed.WindowSize,
		PeakOptions:     c.Peaks.Options(),
	}, nil
}

// OffsetAligner converts offset_align into aligner settings. Unknown
// locations are rejected.
func (c *Config) OffsetAligner() (*align.OffsetConfig, error) {
	oa := c.OffsetAlign
	ref := trial.ParseLocation(oa.ReferenceLocation)
	if !ref.Known() {
		return nil, fmt.Errorf("offset_align.reference_location %q is not a known location", oa.ReferenceLocation)
	}
	targets := make([]trial.Location, 0, len(oa.TargetLocations))
	for _, s := range oa.TargetLocations {
		loc := trial.ParseLocation(s)
		if !loc.Known() {
			return nil, fmt.Errorf("offset_align.target_locations: %q is not a known location", s)
		}
		targets = append(targets, loc)
	}
	pol, err := peaks.ParsePolarity(oa.Polarity)
	if err != nil {
		return nil, fmt.Errorf("offset_align.polarity: %w", err)
	}
	mode, err := align.ParseReferenceMode(oa.Mode)
	if err != nil {
		return nil, fmt.Errorf("offset_align.mode: %w", err)
	}
	rate := oa.SamplingRate
	if rate == 0 {
		rate = c.Preprocess.SampleRate
	}
	return &align.OffsetConfig{
		ReferenceLocation: ref,
		TargetLocations:   targets,
		Column:            oa.Column,
		SamplingRate:      rate,
		Margin:            oa.Margin,
		Polarity:          pol,
		Mode:              mode,
		PeakOptions:       c.Peaks.Options(),
	}, nil
}

// Params converts the section into sample entropy parameters.
func (c EntropyConfig) Params() stats.SampleEntropyParams {
	return stats.SampleEntropyParams{
		EmbeddingDimension: c.M,
		Tolerance:          c.R,
		Relative:           c.Relative,
	}
}

// ParsedFence returns the configured outlier fence.
func (c OutliersConfig) ParsedFence() (measures.Fence, error) {
	f, err := measures.ParseFence(c.Fence)
	if err != nil {
		return f, fmt.Errorf("outliers.fence: %w", err)
	}
	return f, nil
}
