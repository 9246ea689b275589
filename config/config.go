// Package config loads pipeline settings from YAML and IMUGAIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// IMUGAIT_PREPROCESS_SAMPLE_RATE.
const EnvPrefix = "IMUGAIT"

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Input       InputConfig       `mapstructure:"input"`
	Preprocess  PreprocessConfig  `mapstructure:"preprocess"`
	Peaks       PeaksConfig       `mapstructure:"peaks"`
	Windowed    WindowedConfig    `mapstructure:"windowed"`
	OffsetAlign OffsetAlignConfig `mapstructure:"offset_align"`
	Stride      StrideConfig      `mapstructure:"stride"`
	Outliers    OutliersConfig    `mapstructure:"outliers"`
	RMS         RMSConfig         `mapstructure:"rms"`
	Entropy     EntropyConfig     `mapstructure:"entropy"`
	Spectral    SpectralConfig    `mapstructure:"spectral"`
	Output      OutputConfig      `mapstructure:"output"`
	BadTrials   []int             `mapstructure:"bad_trials"`

	settings map[string]any
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Backend           string `mapstructure:"backend"` // "default" or "zap"
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type InputConfig struct {
	Dir        string `mapstructure:"dir"`
	TimeColumn string `mapstructure:"time_column"`
	Offsets    string `mapstructure:"offsets"`
}

type PreprocessConfig struct {
	SampleRate        float64  `mapstructure:"sample_rate"`
	Cutoff            float64  `mapstructure:"cutoff"`
	Order             int      `mapstructure:"order"`
	AxisColumns       []string `mapstructure:"axis_columns"`
	ResultantColumn   string   `mapstructure:"resultant_column"`
	FilterColumns     []string `mapstructure:"filter_columns"`
	MeanCenterColumns []string `mapstructure:"mean_center_columns"`
	ConvertToG        bool     `mapstructure:"convert_to_g"`
	CropSeconds       float64  `mapstructure:"crop_seconds"`
	ShiftTime         bool     `mapstructure:"shift_time"`
}

type PeaksConfig struct {
	Columns     []string `mapstructure:"columns"`
	Polarities  []string `mapstructure:"polarities"`
	MinHeight   *float64 `mapstructure:"min_height"`
	MaxHeight   *float64 `mapstructure:"max_height"`
	MinDistance int      `mapstructure:"min_distance"`
	// ThresholdsFromOutliers replaces the height range of each table with
	// the outlier fence of its first peak column.
	ThresholdsFromOutliers bool `mapstructure:"thresholds_from_outliers"`
}

type WindowedConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ReferenceColumn string   `mapstructure:"reference_column"`
	Columns         []string `mapstructure:"columns"`
	Polarities      []string `mapstructure:"polarities"`
	WindowSize      int      `mapstructure:"window_size"`
}

type OffsetAlignConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	ReferenceLocation string   `mapstructure:"reference_location"`
	TargetLocations   []string `mapstructure:"target_locations"`
	Column            string   `mapstructure:"column"`
	SamplingRate      float64  `mapstructure:"sampling_rate"`
	Margin            int      `mapstructure:"margin"`
	Polarity          string   `mapstructure:"polarity"`
	Mode              string   `mapstructure:"mode"`
}

type StrideConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	TotalMinutes   float64 `mapstructure:"total_minutes"`
	RemoveOutliers bool    `mapstructure:"remove_outliers"`
}

type OutliersConfig struct {
	K     float64 `mapstructure:"k"`
	Z     float64 `mapstructure:"z"`
	Fence string  `mapstructure:"fence"`
}

type RMSConfig struct {
	Columns []string `mapstructure:"columns"`
}

type EntropyConfig struct {
	Columns  []string `mapstructure:"columns"`
	M        int      `mapstructure:"m"`
	R        float64  `mapstructure:"r"`
	Relative bool     `mapstructure:"relative"`
}

type SpectralConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Column  string  `mapstructure:"column"`
	MinHz   float64 `mapstructure:"min_hz"`
	MaxHz   float64 `mapstructure:"max_hz"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Wide   bool   `mapstructure:"wide"`
	Export bool   `mapstructure:"export"`
}

// Load reads path (skipped when empty) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// no default, so AutomaticEnv alone would never surface it to Unmarshal
	_ = v.BindEnv("peaks.max_height")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// Default returns the built-in settings, ignoring the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.settings = v.AllSettings()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.backend", "default")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)

	v.SetDefault("input.dir", ".")
	v.SetDefault("input.time_column", "")
	v.SetDefault("input.offsets", "")

	v.SetDefault("preprocess.sample_rate", 1125.0)
	v.SetDefault("preprocess.cutoff", 10.0)
	v.SetDefault("preprocess.order", 4)
	v.SetDefault("preprocess.axis_columns", []string{"ax_m/s/s", "ay_m/s/s", "az_m/s/s"})
	v.SetDefault("preprocess.resultant_column", "res_m/s/s")
	v.SetDefault("preprocess.filter_columns", []string{"ax_g", "ay_g", "az_g", "res_g"})
	v.SetDefault("preprocess.mean_center_columns", []string{})
	v.SetDefault("preprocess.convert_to_g", true)
	v.SetDefault("preprocess.crop_seconds", 300.0)
	v.SetDefault("preprocess.shift_time", true)

	v.SetDefault("peaks.columns", []string{"res_g"})
	v.SetDefault("peaks.polarities", []string{"pos"})
	v.SetDefault("peaks.min_height", 1.0)
	v.SetDefault("peaks.min_distance", 281)
	v.SetDefault("peaks.thresholds_from_outliers", false)

	v.SetDefault("windowed.enabled", true)
	v.SetDefault("windowed.reference_column", "res_g")
	v.SetDefault("windowed.columns", []string{"ax_g", "ay_g", "az_g"})
	v.SetDefault("windowed.polarities", []string{"abs", "neg"})
	v.SetDefault("windowed.window_size", 150)

	v.SetDefault("offset_align.enabled", false)
	v.SetDefault("offset_align.reference_location", "right_tibia")
	v.SetDefault("offset_align.target_locations", []string{"left_tibia"})
	v.SetDefault("offset_align.column", "res_g")
	// 0 uses preprocess.sample_rate
	v.SetDefault("offset_align.sampling_rate", 0.0)
	v.SetDefault("offset_align.margin", 50)
	v.SetDefault("offset_align.polarity", "pos")
	v.SetDefault("offset_align.mode", "dominant")

	v.SetDefault("stride.enabled", true)
	v.SetDefault("stride.total_minutes", 5.0)
	v.SetDefault("stride.remove_outliers", false)

	v.SetDefault("outliers.k", 1.5)
	v.SetDefault("outliers.z", 3.0)
	v.SetDefault("outliers.fence", "iqr")

	v.SetDefault("rms.columns", []string{"ax_g", "ay_g", "az_g", "res_g"})

	// quadratic in series length; list columns explicitly
	v.SetDefault("entropy.columns", []string{})
	v.SetDefault("entropy.m", 2)
	v.SetDefault("entropy.r", 0.2)
	v.SetDefault("entropy.relative", false)

	v.SetDefault("spectral.enabled", true)
	v.SetDefault("spectral.column", "res_g")
	v.SetDefault("spectral.min_hz", 0.5)
	v.SetDefault("spectral.max_hz", 5.0)

	v.SetDefault("output.dir", "out")
	v.SetDefault("output.wide", true)
	v.SetDefault("output.export", true)

	v.SetDefault("bad_trials", []int{})
}

// Settings returns the merged key/value view the config was decoded from.
func (c *Config) Settings() map[string]any {
	return c.settings
}

// Validate checks values that would otherwise fail deep inside a stage.
func (c *Config) Validate() error {
	var errs []error
	p := c.Preprocess
	if p.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("preprocess.sample_rate must be positive, got %v", p.SampleRate))
	}
	if p.Cutoff <= 0 || p.Cutoff >= p.SampleRate/2 {
		errs = append(errs, fmt.Errorf("preprocess.cutoff %v outside (0, %v)", p.Cutoff, p.SampleRate/2))
	}
	if p.ResultantColumn != "" && len(p.AxisColumns) != 3 {
		errs = append(errs, fmt.Errorf("preprocess.axis_columns needs 3 names, got %d", len(p.AxisColumns)))
	}
	if c.Peaks.MinDistance < 0 {
		errs = append(errs, fmt.Errorf("peaks.min_distance must not be negative"))
	}
	if c.Windowed.Enabled && c.Windowed.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("windowed.window_size must not be negative"))
	}
	if c.OffsetAlign.SamplingRate < 0 {
		errs = append(errs, fmt.Errorf("offset_align.sampling_rate must not be negative"))
	}
	if c.OffsetAlign.Margin < 0 {
		errs = append(errs, fmt.Errorf("offset_align.margin must not be negative"))
	}
	if c.Entropy.M < 1 {
		errs = append(errs, fmt.Errorf("entropy.m must be at least 1"))
	}
	if c.Spectral.Enabled && c.Spectral.MaxHz <= c.Spectral.MinHz {
		errs = append(errs, fmt.Errorf("spectral band [%v, %v] is empty", c.Spectral.MinHz, c.Spectral.MaxHz))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
