package common

import (
	"math"
	"slices"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestDiffDropsLeading(t *testing.T) {
	got := Diff([]float64{0, 0.8, 1.5, 2.3})
	want := []float64{0.8, 0.7, 0.8}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if !approx(got[i], want[i]) {
			t.Fatalf("Diff=%v want %v", got, want)
		}
	}
	if len(Diff([]float64{1})) != 0 {
		t.Fatalf("single value should produce empty diff")
	}
}

func TestDescriptive(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if !approx(Mean(x), 5) {
		t.Errorf("mean=%v", Mean(x))
	}
	if !approx(PopulationStdDev(x), 2) {
		t.Errorf("pop sd=%v", PopulationStdDev(x))
	}
	if !approx(StandardDeviation(x), math.Sqrt(32.0/7.0)) {
		t.Errorf("sample sd=%v", StandardDeviation(x))
	}
	if !approx(RMS([]float64{3, -3, 3, -3}), 3) {
		t.Errorf("rms=%v", RMS([]float64{3, -3, 3, -3}))
	}
	if !math.IsNaN(Mean(nil)) || !math.IsNaN(StandardDeviation([]float64{1})) || !math.IsNaN(RMS(nil)) {
		t.Errorf("undefined inputs should give NaN")
	}
}

func TestElementwise(t *testing.T) {
	x := []float64{-1, 2, -3}
	if !slices.Equal(Abs(x), []float64{1, 2, 3}) {
		t.Errorf("Abs=%v", Abs(x))
	}
	if !slices.Equal(Negate(x), []float64{1, -2, 3}) {
		t.Errorf("Negate=%v", Negate(x))
	}
	if !slices.Equal(x, []float64{-1, 2, -3}) {
		t.Errorf("input mutated: %v", x)
	}
	if !slices.Equal(Subtract(x, 1), []float64{-2, 1, -4}) {
		t.Errorf("Subtract=%v", Subtract(x, 1))
	}
	if !slices.Equal(CumulativeSum([]float64{1, 2, 3}), []float64{1, 3, 6}) {
		t.Errorf("CumulativeSum=%v", CumulativeSum([]float64{1, 2, 3}))
	}
}

func TestArgMaxFirstOccurrence(t *testing.T) {
	if got := ArgMax([]float64{1, 5, 2, 5}); got != 1 {
		t.Fatalf("ArgMax=%d want 1", got)
	}
	if got := ArgMax([]float64{math.NaN(), 1}); got != 1 {
		t.Fatalf("ArgMax with NaN=%d want 1", got)
	}
	if got := ArgMax(nil); got != -1 {
		t.Fatalf("ArgMax(nil)=%d", got)
	}
}

func TestLinRegression(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	slope, intercept, r2 := LinRegression(x, y)
	if !approx(slope, 2) || !approx(intercept, 1) || !approx(r2, 1) {
		t.Fatalf("slope=%v intercept=%v r2=%v", slope, intercept, r2)
	}
}

func TestClampIndex(t *testing.T) {
	if ClampIndex(-4, 0, 9) != 0 || ClampIndex(12, 0, 9) != 9 || ClampIndex(5, 0, 9) != 5 {
		t.Fatalf("ClampIndex wrong")
	}
}
