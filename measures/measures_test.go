package measures

import (
	"math"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/imu-gait/algorithms/stats"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
)

const key = "s01_run_low_back_33333_trial1"

func quietCollector() *report.Collector {
	return report.NewCollectorWithLogger(&logging.NoOpLogger{})
}

func table(t *testing.T, timeCol string, cols map[string][]float64, times []float64) *signal.Table {
	t.Helper()
	tbl := signal.NewTable(timeCol)
	if err := tbl.SetColumn(timeCol, times); err != nil {
		t.Fatal(err)
	}
	for name, v := range cols {
		if err := tbl.SetColumn(name, v); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func uniformTimes(n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / rate
	}
	return out
}

func single(key string, t *signal.Table) *signal.Collection {
	c := signal.NewCollection()
	c.Set(key, t)
	return c
}

func rowValue(t *testing.T, rows []summary.Row, variable string) float64 {
	t.Helper()
	for _, r := range rows {
		if r.Variable == variable {
			return r.Value
		}
	}
	t.Fatalf("no row for %s in %v", variable, rows)
	return 0
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestAveragePeaksAndEvents(t *testing.T) {
	const n, rate = 1000, 500.0
	x := make([]float64, n)
	x[100], x[400], x[700] = 2, 3, 4
	c := single(key, table(t, "timestamp", map[string][]float64{"res_g": x}, uniformTimes(n, rate)))

	det := peaks.NewDetector(peaks.Options{MinHeight: peaks.Height(1), MinDistance: 281})
	b := NewBuilder(quietCollector())
	rows, events := b.AveragePeaks(c, []string{"res_g"}, peaks.Positive, det)

	if got := rowValue(t, rows, "res_g_avg_peak"); !near(got, 3, 1e-12) {
		t.Errorf("avg peak = %v, want 3", got)
	}
	ev, ok := events.Get(key)
	if !ok {
		t.Fatal("no event table")
	}
	times, _ := ev.Time()
	want := []float64{0.2, 0.8, 1.4}
	if len(times) != len(want) {
		t.Fatalf("event times = %v, want %v", times, want)
	}
	for i := range want {
		if !near(times[i], want[i], 1e-12) {
			t.Errorf("event %d at %v, want %v", i, times[i], want[i])
		}
	}
	values, _ := ev.Column(PeakValuesColumn)
	if values[2] != 4 {
		t.Errorf("peak value = %v, want 4", values[2])
	}
}

func TestAveragePeaksEmptySet(t *testing.T) {
	col := quietCollector()
	c := single(key, table(t, "timestamp", map[string][]float64{"res_g": make([]float64, 50)}, uniformTimes(50, 100)))

	rows, _ := NewBuilder(col).AveragePeaks(c, []string{"res_g"}, peaks.Negative, peaks.NewDetector(peaks.Options{}))
	if v := rowValue(t, rows, "res_g_avg_neg_peak"); !summary.IsUndefined(v) {
		t.Errorf("avg of empty set = %v, want undefined", v)
	}
	if col.Count(report.KindEmptyPeakSet) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}
}

func TestStrideTimes(t *testing.T) {
	events := single(key, table(t, "timestamp", map[string][]float64{
		PeakValuesColumn: {1, 1, 1, 1},
	}, []float64{0, 0.8, 1.5, 2.3}))

	col := quietCollector()
	out := NewBuilder(col).StrideTimes(events)
	st, ok := out.Get(key)
	if !ok {
		t.Fatal("missing stride table")
	}
	got, err := st.Column(StrideTimesColumn)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.8, 0.7, 0.8}
	if len(got) != len(want) {
		t.Fatalf("stride times = %v, want %v", got, want)
	}
	for i := range want {
		if !near(got[i], want[i], 1e-9) {
			t.Errorf("stride %d = %v, want %v", i, got[i], want[i])
		}
	}
	times, _ := st.Time()
	if times[0] != 0.8 {
		t.Errorf("first row time = %v, want 0.8", times[0])
	}
	if col.Len() != 0 {
		t.Errorf("unexpected diagnostics %v", col.Items())
	}
}

func TestStrideTimesTooFewEvents(t *testing.T) {
	events := single(key, table(t, "timestamp", map[string][]float64{PeakValuesColumn: {1}}, []float64{0.5}))
	col := quietCollector()
	out := NewBuilder(col).StrideTimes(events)
	if out.Len() != 0 {
		t.Errorf("got %d tables, want 0", out.Len())
	}
	if col.Count(report.KindEmptyPeakSet) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}
}

func TestStrideVariables(t *testing.T) {
	st := []float64{0.8, 0.7, 0.8, 0.7}
	c := single(key, table(t, "timestamp", map[string][]float64{StrideTimesColumn: st}, []float64{1, 2, 3, 4}))

	col := quietCollector()
	rows := NewBuilder(col).StrideVariables(c, StrideTimesColumn, 2)

	sd := math.Sqrt(0.01 / 3)
	checks := map[string]float64{
		"stride_times_mean": 0.75,
		"stride_times_sd":   sd,
		"stride_times_cv":   sd / 0.75 * 100,
		"stride_times_spm":  2,
	}
	for v, want := range checks {
		if got := rowValue(t, rows, v); !near(got, want, 1e-9) {
			t.Errorf("%s = %v, want %v", v, got, want)
		}
	}
	// four strides are too few for DFA
	if v := rowValue(t, rows, "stride_times_fsi"); !summary.IsUndefined(v) {
		t.Errorf("fsi = %v, want undefined", v)
	}
	if col.Count(report.KindEstimatorFailure) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}
}

func TestStrideVariablesFSI(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	st := make([]float64, 1000)
	for i := range st {
		st[i] = 0.75 + 0.02*rng.NormFloat64()
	}
	c := single(key, table(t, "timestamp", map[string][]float64{StrideTimesColumn: st}, uniformTimes(len(st), 1)))

	col := quietCollector()
	rows := NewBuilder(col).StrideVariables(c, StrideTimesColumn, 12.5)
	fsi := rowValue(t, rows, "stride_times_fsi")
	if fsi < 0.3 || fsi > 0.7 {
		t.Errorf("fsi of white noise = %v, want near 0.5", fsi)
	}
	if got := rowValue(t, rows, "stride_times_spm"); got != 80 {
		t.Errorf("spm = %v, want 80", got)
	}
}

func TestRMSAndMissingColumn(t *testing.T) {
	c := single(key, table(t, "timestamp", map[string][]float64{"ax_g": {3, -3, 3, -3}}, uniformTimes(4, 1)))
	col := quietCollector()
	rows := NewBuilder(col).RMS(c, []string{"ax_g", "gyro_x"})

	if len(rows) != 1 {
		t.Fatalf("rows = %v, want one", rows)
	}
	if rows[0].Variable != "ax_g_rms" || rows[0].Value != 3 {
		t.Errorf("row = %+v", rows[0])
	}
	if col.Count(report.KindMissingColumn) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}
}

func TestSampleEntropy(t *testing.T) {
	constant := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	c := signal.NewCollection()
	c.Set("a", table(t, "timestamp", map[string][]float64{"ay_g": constant}, uniformTimes(10, 1)))
	c.Set("b", table(t, "timestamp", map[string][]float64{"ay_g": {1, 2, 3}}, uniformTimes(3, 1)))

	col := quietCollector()
	rows := NewBuilder(col).SampleEntropy(c, []string{"ay_g"}, stats.DefaultSampleEntropyParams())
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	for _, r := range rows {
		switch r.Key {
		case "a":
			if r.Value != 0 {
				t.Errorf("constant series sampen = %v, want 0", r.Value)
			}
		case "b":
			if !summary.IsUndefined(r.Value) {
				t.Errorf("short series sampen = %v, want undefined", r.Value)
			}
		}
		if r.Variable != "ay_g_sampen" {
			t.Errorf("variable = %s", r.Variable)
		}
	}
	if col.Count(report.KindEstimatorFailure) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}
}

func TestDominantFrequency(t *testing.T) {
	const n, rate = 2000, 100.0
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 1.5 * float64(i) / rate)
	}
	c := single(key, table(t, "timestamp", map[string][]float64{"res_g": x}, uniformTimes(n, rate)))

	rows := NewBuilder(quietCollector()).DominantFrequency(c, "res_g", rate, 0.5, 5)
	if hz := rowValue(t, rows, "res_g_dominant_hz"); !near(hz, 1.5, 0.05) {
		t.Errorf("dominant = %v Hz, want 1.5", hz)
	}
	if spm := rowValue(t, rows, "res_g_spectral_spm"); !near(spm, 90, 3) {
		t.Errorf("spectral spm = %v, want 90", spm)
	}
}

func TestRemoveOutliersExactCount(t *testing.T) {
	st := []float64{0.7, 0.8, 5.0, 0.75, -1, 0.9}
	c := signal.NewCollection()
	c.Set(key, table(t, "timestamp", map[string][]float64{StrideTimesColumn: st}, uniformTimes(len(st), 1)))
	c.Set("other", table(t, "timestamp", map[string][]float64{StrideTimesColumn: {1, 2}}, uniformTimes(2, 1)))

	col := quietCollector()
	bounds := map[string]stats.Bounds{key: {Lower: 0.7, Upper: 0.9}}
	out, counts := NewBuilder(col).RemoveOutliers(c, StrideTimesColumn, bounds)

	if len(counts) != 1 || counts[0].Key != key || counts[0].Count != 2 {
		t.Fatalf("counts = %+v, want 2 removed from %s", counts, key)
	}
	kept, _ := out.Get(key)
	got, _ := kept.Column(StrideTimesColumn)
	want := []float64{0.7, 0.8, 0.75, 0.9}
	if len(got) != len(want) {
		t.Fatalf("kept = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kept[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	times, _ := kept.Time()
	if times[2] != 3 {
		t.Errorf("time column not filtered with values: %v", times)
	}

	other, _ := out.Get("other")
	if other.Len() != 2 {
		t.Errorf("table without bounds changed: %d rows", other.Len())
	}
	if col.Count(report.KindInput) != 1 {
		t.Errorf("diagnostics = %v", col.Items())
	}

	// input untouched
	orig, _ := c.Get(key)
	if orig.Len() != len(st) {
		t.Errorf("input table modified")
	}
}

func TestSummarizeOutliersFeedsThresholds(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	c := single(key, table(t, "timestamp", map[string][]float64{"res_g": values}, uniformTimes(len(values), 1)))

	rows := NewBuilder(quietCollector()).SummarizeOutliers(c, []string{"res_g"}, 1.5, 3)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	s := rows[0].Summary
	if s.Mean != 4.5 || s.Min != 1 || s.Max != 8 {
		t.Errorf("summary = %+v", s)
	}

	tt := ThresholdsFromOutliers(rows, "res_g", IQRFence)
	th, ok := tt.Get(key)
	if !ok {
		t.Fatal("no thresholds")
	}
	if th.Min != s.IQRFor.Lower || th.Max != s.IQRFor.Upper {
		t.Errorf("thresholds = %+v, want %+v", th, s.IQRFor)
	}
	if b := BoundsByKey(rows, "res_g", ZFence)[key]; b != s.ZFor {
		t.Errorf("z bounds = %+v, want %+v", b, s.ZFor)
	}
}

func TestParseFence(t *testing.T) {
	for in, want := range map[string]Fence{"": IQRFence, "iqr": IQRFence, "z": ZFence} {
		got, err := ParseFence(in)
		if err != nil || got != want {
			t.Errorf("ParseFence(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFence("mad"); err == nil {
		t.Error("expected error")
	}
}
