package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the signal algorithms, backed by gonum.

// Mean calculates the arithmetic mean of a slice. Empty input yields NaN so
// callers can surface an undefined value instead of a misleading zero.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample (n-1) variance. Fewer than two values
// yields NaN.
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	return math.Sqrt(Variance(data))
}

// PopulationStdDev is the n-denominator standard deviation.
func PopulationStdDev(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(data, nil)
	return math.Sqrt(v)
}

// CoefficientOfVariation returns SD/mean as a percentage.
func CoefficientOfVariation(data []float64) float64 {
	return StandardDeviation(data) / Mean(data) * 100
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Diff returns the first difference x[i]-x[i-1]; the undefined leading
// value is dropped so the result has len(x)-1 elements.
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return []float64{}
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// Abs returns |x| element-wise in a new slice.
func Abs(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

// Negate returns -x element-wise in a new slice.
func Negate(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.Scale(-1, out)
	return out
}

// Subtract returns x - c element-wise in a new slice.
func Subtract(x []float64, c float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.AddConst(-c, out)
	return out
}

// Scale returns x * c element-wise in a new slice.
func Scale(x []float64, c float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.Scale(c, out)
	return out
}

// CumulativeSum returns the running sum of x.
func CumulativeSum(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	return floats.CumSum(out, x)
}

// ArgMax returns the index of the first maximum, or -1 for empty input.
// NaN values are skipped.
func ArgMax(x []float64) int {
	best := -1
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > x[best] {
			best = i
		}
	}
	return best
}

// LinRegression performs simple linear regression and returns slope, intercept, r²
func LinRegression(x, y []float64) (slope, intercept, rSquared float64) {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	rSquared = stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(rSquared) || math.IsInf(rSquared, 0) {
		rSquared = 0.0
	}

	return beta, alpha, rSquared
}

// ClampIndex constrains i to [lo, hi].
func ClampIndex(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// AllFinite reports whether x has no NaN or Inf values.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
