package stats

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/report"
)

// SampleEntropyParams configures a sample entropy estimate.
type SampleEntropyParams struct {
	// EmbeddingDimension is the template length m.
	EmbeddingDimension int `json:"embedding_dimension"`

	// Tolerance is the match distance r. When Relative is set it is a
	// fraction of the sample standard deviation of the series.
	Tolerance float64 `json:"tolerance"`
	Relative  bool    `json:"relative"`

	// Closed counts distances equal to the tolerance as matches.
	Closed bool `json:"closed"`
}

// DefaultSampleEntropyParams returns m=2, r=0.2 (absolute, open interval).
func DefaultSampleEntropyParams() SampleEntropyParams {
	return SampleEntropyParams{
		EmbeddingDimension: 2,
		Tolerance:          0.2,
	}
}

// SampleEntropyResult contains the estimate and the match counts it was
// derived from.
type SampleEntropyResult struct {
	Value     float64 `json:"value"`
	Tolerance float64 `json:"tolerance"`
	MatchesM  int     `json:"matches_m"`  // template pairs of length m
	MatchesM1 int     `json:"matches_m1"` // template pairs of length m+1
}

// SampleEntropy estimates -ln(A/B) where B counts pairs of length-m
// templates within tolerance (Chebyshev distance) and A counts the same for
// length m+1. Both counts use the n-m templates that have an m+1 extension
// and self matches are excluded.
type SampleEntropy struct {
	params SampleEntropyParams
}

// NewSampleEntropy creates an estimator with default parameters.
func NewSampleEntropy() *SampleEntropy {
	return &SampleEntropy{params: DefaultSampleEntropyParams()}
}

// NewSampleEntropyWithParams creates an estimator with custom parameters.
func NewSampleEntropyWithParams(params SampleEntropyParams) *SampleEntropy {
	return &SampleEntropy{params: params}
}

// Analyze computes sample entropy for data. A series too short to embed, a
// non-positive tolerance, or zero matches wrap report.ErrEstimatorFailure;
// the returned result then carries NaN (or +Inf when only the m+1 count is
// zero).
func (se *SampleEntropy) Analyze(data []float64) (*SampleEntropyResult, error) {
	m := se.params.EmbeddingDimension
	if m < 1 {
		return nil, fmt.Errorf("embedding dimension must be at least 1, got %d: %w", m, report.ErrEstimatorFailure)
	}
	n := len(data)
	if n < m+2 {
		return &SampleEntropyResult{Value: math.NaN()},
			fmt.Errorf("series of length %d too short for m=%d: %w", n, m, report.ErrEstimatorFailure)
	}
	if !common.AllFinite(data) {
		return &SampleEntropyResult{Value: math.NaN()},
			fmt.Errorf("series contains non-finite values: %w", report.ErrEstimatorFailure)
	}

	tol := se.params.Tolerance
	if se.params.Relative {
		tol *= common.StandardDeviation(data)
	}
	if !(tol > 0) {
		return &SampleEntropyResult{Value: math.NaN(), Tolerance: tol},
			fmt.Errorf("tolerance %v must be positive: %w", tol, report.ErrEstimatorFailure)
	}

	templates := n - m
	result := &SampleEntropyResult{Tolerance: tol}
	for i := 0; i < templates-1; i++ {
		for j := i + 1; j < templates; j++ {
			d := chebyshev(data, i, j, m)
			if !se.within(d, tol) {
				continue
			}
			result.MatchesM++
			// extend the template by one sample
			ext := math.Max(d, math.Abs(data[i+m]-data[j+m]))
			if se.within(ext, tol) {
				result.MatchesM1++
			}
		}
	}

	switch {
	case result.MatchesM == 0:
		result.Value = math.NaN()
		return result, fmt.Errorf("no template matches of length %d: %w", m, report.ErrEstimatorFailure)
	case result.MatchesM1 == 0:
		result.Value = math.Inf(1)
		return result, fmt.Errorf("no template matches of length %d: %w", m+1, report.ErrEstimatorFailure)
	}

	result.Value = math.Log(float64(result.MatchesM) / float64(result.MatchesM1))
	return result, nil
}

// Compute is a convenience wrapper returning only the value.
func (se *SampleEntropy) Compute(data []float64) (float64, error) {
	res, err := se.Analyze(data)
	if res == nil {
		return math.NaN(), err
	}
	return res.Value, err
}

// GetParameters returns the current parameters.
func (se *SampleEntropy) GetParameters() SampleEntropyParams {
	return se.params
}

func (se *SampleEntropy) within(d, tol float64) bool {
	if se.params.Closed {
		return d <= tol
	}
	return d < tol
}

func chebyshev(data []float64, i, j, m int) float64 {
	maxDist := 0.0
	for k := 0; k < m; k++ {
		if d := math.Abs(data[i+k] - data[j+k]); d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}
