// Package preprocess prepares raw IMU tables for peak detection: cropping
// to a fixed duration, unit conversion, resultant magnitude, zero-phase
// low-pass filtering and mean-centring.
package preprocess

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/algorithms/filters"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/trial"
)

// StandardGravity converts m/s/s to g.
const StandardGravity = 9.81

// Column suffixes and names written by this package.
const (
	FilteredSuffix   = "_filtered"
	MeanShiftSuffix  = "_meanshift"
	ScaledTimeColumn = "time_s_scaled"
)

// GColumns are the names ToG writes for the three axes and the resultant.
var GColumns = [4]string{"ax_g", "ay_g", "az_g", "res_g"}

// Config holds preprocessing parameters.
type Config struct {
	SampleRate float64 `json:"sample_rate"`
	Cutoff     float64 `json:"cutoff"`
	Order      int     `json:"order"`

	// AxisColumns are the raw x, y, z acceleration columns in m/s/s.
	AxisColumns     [3]string `json:"axis_columns"`
	ResultantColumn string    `json:"resultant_column"`

	FilterColumns     []string `json:"filter_columns"`
	MeanCenterColumns []string `json:"mean_center_columns"`

	ConvertToG  bool    `json:"convert_to_g"`
	CropSeconds float64 `json:"crop_seconds"`
	ShiftTime   bool    `json:"shift_time"`
}

// DefaultConfig matches the Blue Trident low-g sensors: 1125 Hz, 4th order
// Butterworth at 10 Hz, five minutes of data.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:      1125,
		Cutoff:          10,
		Order:           4,
		AxisColumns:     [3]string{"ax_m/s/s", "ay_m/s/s", "az_m/s/s"},
		ResultantColumn: "res_m/s/s",
		ConvertToG:      true,
		CropSeconds:     300,
		ShiftTime:       true,
	}
}

// Preprocessor applies the preparation stages to every table in a
// collection. Per-table problems become diagnostics.
type Preprocessor struct {
	config    *Config
	collector *report.Collector
	logger    logging.Logger
}

// New creates a preprocessor; nil config uses the defaults.
func New(config *Config, collector *report.Collector) *Preprocessor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Preprocessor{
		config:    config,
		collector: collector,
		logger: logging.WithFields(logging.Fields{
			"component": "preprocessor",
		}),
	}
}

// Run applies, in order: crop, resultant, g conversion, low-pass filter,
// mean-centring and time shift. Stages with no configured columns are
// skipped.
func (p *Preprocessor) Run(c *signal.Collection) error {
	cfg := p.config
	if cfg.CropSeconds > 0 {
		p.CropToDuration(c, cfg.CropSeconds)
	}
	if cfg.ResultantColumn != "" {
		p.Resultant(c, cfg.AxisColumns, cfg.ResultantColumn)
	}
	if cfg.ConvertToG {
		p.ToG(c, cfg.AxisColumns, cfg.ResultantColumn)
	}
	if len(cfg.FilterColumns) > 0 {
		if err := p.LowPass(c, cfg.FilterColumns); err != nil {
			return err
		}
	}
	if len(cfg.MeanCenterColumns) > 0 {
		p.MeanCenter(c, cfg.MeanCenterColumns)
	}
	if cfg.ShiftTime {
		p.ShiftTimeToZero(c)
	}
	return nil
}

// CropToDuration keeps the last seconds*SampleRate rows of each table,
// removing the excess from the beginning. Shorter tables are left as they
// are with a diagnostic.
func (p *Preprocessor) CropToDuration(c *signal.Collection, seconds float64) {
	need := int(math.Round(seconds * p.config.SampleRate))
	c.Each(func(key string, t *signal.Table) bool {
		n := t.Len()
		switch {
		case n < need:
			p.collector.Add(report.Diagnostic{
				Key:    key,
				Stage:  "crop",
				Kind:   report.KindInput,
				Reason: fmt.Sprintf("has only %d rows, needs %d", n, need),
			})
		case n > need:
			c.Set(key, t.Slice(n-need, n))
		}
		return true
	})
}

// Resultant adds name = sqrt(x^2 + y^2 + z^2).
func (p *Preprocessor) Resultant(c *signal.Collection, axes [3]string, name string) {
	c.Each(func(key string, t *signal.Table) bool {
		cols, err := columns(t, axes[:]...)
		if err != nil {
			p.collector.Record("resultant", key, "", err)
			return true
		}
		res := make([]float64, t.Len())
		for i := range res {
			x, y, z := cols[0][i], cols[1][i], cols[2][i]
			res[i] = math.Sqrt(x*x + y*y + z*z)
		}
		p.set(key, t, name, res)
		return true
	})
}

// ToG writes ax_g, ay_g, az_g from the axis columns and res_g from res when
// that column exists.
func (p *Preprocessor) ToG(c *signal.Collection, axes [3]string, res string) {
	c.Each(func(key string, t *signal.Table) bool {
		cols, err := columns(t, axes[:]...)
		if err != nil {
			p.collector.Record("to_g", key, "", err)
			return true
		}
		for i, col := range cols {
			p.set(key, t, GColumns[i], common.Scale(col, 1/StandardGravity))
		}
		if r, err := t.Column(res); err == nil {
			p.set(key, t, GColumns[3], common.Scale(r, 1/StandardGravity))
		}
		return true
	})
}

// LowPass writes <col>_filtered for each column using a zero-phase
// Butterworth low-pass. An invalid filter design is returned as an error;
// missing columns and tables too short to filter become diagnostics.
func (p *Preprocessor) LowPass(c *signal.Collection, cols []string) error {
	bw, err := filters.NewButterworthLowpass(p.config.SampleRate, p.config.Cutoff, p.config.Order)
	if err != nil {
		return fmt.Errorf("failed to design low-pass filter: %w", err)
	}
	c.Each(func(key string, t *signal.Table) bool {
		for _, col := range cols {
			values, err := t.Column(col)
			if err != nil {
				p.collector.Record("low_pass", key, col, err)
				continue
			}
			out, err := bw.FiltFilt(values)
			if err != nil {
				p.collector.Add(report.Diagnostic{
					Key: key, Column: col, Stage: "low_pass",
					Kind: report.KindInput, Reason: err.Error(),
				})
				continue
			}
			p.set(key, t, col+FilteredSuffix, out)
		}
		return true
	})
	p.logger.Debug("low-pass filter applied", logging.Fields{
		"cutoff": p.config.Cutoff,
		"order":  p.config.Order,
		"tables": c.Len(),
	})
	return nil
}

// MeanCenter writes <col>_meanshift = col - mean(col).
func (p *Preprocessor) MeanCenter(c *signal.Collection, cols []string) {
	c.Each(func(key string, t *signal.Table) bool {
		for _, col := range cols {
			values, err := t.Column(col)
			if err != nil {
				p.collector.Record("mean_center", key, col, err)
				continue
			}
			p.set(key, t, col+MeanShiftSuffix, common.Subtract(values, common.Mean(values)))
		}
		return true
	})
}

// ShiftTimeToZero writes time_s_scaled, the time axis minus its first value.
func (p *Preprocessor) ShiftTimeToZero(c *signal.Collection) {
	c.Each(func(key string, t *signal.Table) bool {
		times, err := t.Time()
		if err != nil {
			p.collector.Record("shift_time", key, t.TimeColumn(), err)
			return true
		}
		if len(times) == 0 {
			return true
		}
		p.set(key, t, ScaledTimeColumn, common.Subtract(times, times[0]))
		return true
	})
}

// RemoveTrials deletes every table whose resolved trial number is listed.
// Keys that do not resolve are kept. It returns the removed keys.
func RemoveTrials(c *signal.Collection, resolver *trial.Resolver, trials []int) []string {
	if len(trials) == 0 {
		return nil
	}
	bad := make(map[int]bool, len(trials))
	for _, n := range trials {
		bad[n] = true
	}
	var removed []string
	c.DeleteFunc(func(key string, _ *signal.Table) bool {
		id, err := resolver.Resolve(key)
		if err != nil || !bad[id.Trial] {
			return false
		}
		removed = append(removed, key)
		return true
	})
	return removed
}

func (p *Preprocessor) set(key string, t *signal.Table, name string, values []float64) {
	if err := t.SetColumn(name, values); err != nil {
		p.collector.Record("preprocess", key, name, err)
	}
}

func columns(t *signal.Table, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
