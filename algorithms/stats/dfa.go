package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/report"
)

// DFAParams configures detrended fluctuation analysis.
type DFAParams struct {
	// WindowSizes are the box sizes n. Empty selects 15 logarithmically
	// spaced sizes from the middle quarter of the log range of the series
	// length.
	WindowSizes []int `json:"window_sizes"`

	// Overlap uses boxes advanced by n/2 instead of n.
	Overlap bool `json:"overlap"`
}

// DefaultDFAParams returns overlapping boxes with automatic sizes.
func DefaultDFAParams() DFAParams {
	return DFAParams{Overlap: true}
}

// DFAResult holds the scaling exponent and the fitted points.
type DFAResult struct {
	Alpha        float64   `json:"alpha"`
	WindowSizes  []int     `json:"window_sizes"`
	Fluctuations []float64 `json:"fluctuations"`
	RSquared     float64   `json:"r_squared"`
}

// DFA estimates the fractal scaling index alpha of a series: the slope of
// log F(n) against log n, where F(n) is the mean RMS deviation of the
// integrated, mean-removed series from a per-box linear trend.
type DFA struct {
	params DFAParams
}

// NewDFA creates an estimator with default parameters.
func NewDFA() *DFA {
	return &DFA{params: DefaultDFAParams()}
}

// NewDFAWithParams creates an estimator with custom parameters.
func NewDFAWithParams(params DFAParams) *DFA {
	return &DFA{params: params}
}

// Analyze computes alpha. Failures wrap report.ErrEstimatorFailure and
// leave Alpha as NaN.
func (d *DFA) Analyze(data []float64) (*DFAResult, error) {
	failed := &DFAResult{Alpha: math.NaN(), RSquared: math.NaN()}
	n := len(data)
	if !common.AllFinite(data) {
		return failed, fmt.Errorf("series contains non-finite values: %w", report.ErrEstimatorFailure)
	}

	sizes := d.params.WindowSizes
	if len(sizes) == 0 {
		sizes = LogMidWindowSizes(n, 0.25, 15)
	}
	if len(sizes) < 2 {
		return failed, fmt.Errorf("need at least two window sizes, have %d: %w", len(sizes), report.ErrEstimatorFailure)
	}
	if slices.Min(sizes) < 2 {
		return failed, fmt.Errorf("window sizes must be at least 2: %w", report.ErrEstimatorFailure)
	}
	if slices.Max(sizes) >= n {
		return failed, fmt.Errorf("window size %d not smaller than series length %d: %w", slices.Max(sizes), n, report.ErrEstimatorFailure)
	}

	// profile: cumulative sum of deviations from the mean
	walk := make([]float64, n)
	mean := common.Mean(data)
	for i, v := range data {
		walk[i] = v - mean
	}
	floats.CumSum(walk, walk)

	var logN, logF []float64
	result := &DFAResult{}
	for _, size := range sizes {
		f := d.fluctuation(walk, size)
		if f == 0 || math.IsNaN(f) {
			continue
		}
		result.WindowSizes = append(result.WindowSizes, size)
		result.Fluctuations = append(result.Fluctuations, f)
		logN = append(logN, math.Log(float64(size)))
		logF = append(logF, math.Log(f))
	}
	if len(logN) < 2 {
		failed.WindowSizes = result.WindowSizes
		failed.Fluctuations = result.Fluctuations
		return failed, fmt.Errorf("fewer than two non-zero fluctuations: %w", report.ErrEstimatorFailure)
	}

	result.Alpha, _, result.RSquared = common.LinRegression(logN, logF)
	return result, nil
}

// Compute is a convenience wrapper returning only alpha.
func (d *DFA) Compute(data []float64) (float64, error) {
	res, err := d.Analyze(data)
	if res == nil {
		return math.NaN(), err
	}
	return res.Alpha, err
}

func (d *DFA) fluctuation(walk []float64, size int) float64 {
	step := size
	if d.params.Overlap {
		step = max(size/2, 1)
	}

	x := make([]float64, size)
	for i := range x {
		x[i] = float64(i)
	}

	var sum float64
	boxes := 0
	for start := 0; start+size <= len(walk); start += step {
		// overlapping boxes never start at the final aligned position
		if d.params.Overlap && start >= len(walk)-size {
			break
		}
		box := walk[start : start+size]
		slope, intercept, _ := common.LinRegression(x, box)

		var ss float64
		for i, v := range box {
			r := v - (intercept + slope*x[i])
			ss += r * r
		}
		sum += math.Sqrt(ss / float64(size))
		boxes++
	}
	if boxes == 0 {
		return math.NaN()
	}
	return sum / float64(boxes)
}

// LogMidWindowSizes returns up to steps distinct integer sizes spaced
// evenly in log space over the middle ratio of [0, ln(maxN)].
func LogMidWindowSizes(maxN int, ratio float64, steps int) []int {
	if maxN < 2 || steps < 1 {
		return nil
	}
	l := math.Log(float64(maxN))
	span := l * ratio
	start := l * (1 - ratio) * 0.5

	var sizes []int
	for i := 0; i < steps; i++ {
		v := int(math.Round(math.Exp(start + float64(i)/float64(steps)*span)))
		if len(sizes) == 0 || sizes[len(sizes)-1] != v {
			sizes = append(sizes, v)
		}
	}
	return sizes
}
