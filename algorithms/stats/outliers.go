package stats

import (
	"fmt"

	mstats "github.com/montanaflynn/stats"

	"github.com/RyanBlaney/imu-gait/report"
)

// Bounds is an inclusive keep range: values v with Lower <= v <= Upper
// are retained.
type Bounds struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Contains reports whether v lies inside the bounds. NaN is never inside.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// OutlierSummary describes a column and the two outlier fences derived
// from it.
type OutlierSummary struct {
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	CV     float64 `json:"cv"` // SD / mean * 100
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	IQR    float64 `json:"iqr"`
	IQRFor Bounds  `json:"iqr_bounds"` // Q1 - k*IQR, Q3 + k*IQR
	ZFor   Bounds  `json:"z_bounds"`   // mean -/+ z*SD
}

// SummarizeOutliers computes the IQR fence with multiplier k and the
// z-score fence with multiplier z. Fewer than two values wraps
// report.ErrEstimatorFailure.
func SummarizeOutliers(data []float64, k, z float64) (*OutlierSummary, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("need at least two values for outlier bounds, have %d: %w", len(data), report.ErrEstimatorFailure)
	}
	in := mstats.Float64Data(data)

	q, err := mstats.Quartile(in)
	if err != nil {
		return nil, fmt.Errorf("quartiles: %v: %w", err, report.ErrEstimatorFailure)
	}
	mean, err := mstats.Mean(in)
	if err != nil {
		return nil, fmt.Errorf("mean: %v: %w", err, report.ErrEstimatorFailure)
	}
	sd, err := mstats.StandardDeviationSample(in)
	if err != nil {
		return nil, fmt.Errorf("standard deviation: %v: %w", err, report.ErrEstimatorFailure)
	}
	lo, err := mstats.Min(in)
	if err != nil {
		return nil, fmt.Errorf("min: %v: %w", err, report.ErrEstimatorFailure)
	}
	hi, err := mstats.Max(in)
	if err != nil {
		return nil, fmt.Errorf("max: %v: %w", err, report.ErrEstimatorFailure)
	}

	iqr := q.Q3 - q.Q1
	return &OutlierSummary{
		Mean:   mean,
		SD:     sd,
		CV:     sd / mean * 100,
		Min:    lo,
		Max:    hi,
		Q1:     q.Q1,
		Q3:     q.Q3,
		IQR:    iqr,
		IQRFor: Bounds{Lower: q.Q1 - k*iqr, Upper: q.Q3 + k*iqr},
		ZFor:   Bounds{Lower: mean - z*sd, Upper: mean + z*sd},
	}, nil
}
