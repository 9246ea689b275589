package align

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/offsets"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/trial"
)

const (
	rightT1 = "s01_run_right_tibia_11111_trial1"
	leftT1  = "s01_run_left_tibia_22222_trial1"
	rightT2 = "s01_run_right_tibia_11111_trial2"
	leftT2  = "s01_run_left_tibia_22222_trial2"
)

func bumps(n int, idx []int, height float64) []float64 {
	x := make([]float64, n)
	for _, c := range idx {
		for d := -5; d <= 5; d++ {
			if j := c + d; j >= 0 && j < n {
				x[j] = math.Max(x[j], height*(1-math.Abs(float64(d))/6))
			}
		}
	}
	return x
}

func makeTable(t *testing.T, rate float64, cols map[string][]float64) *signal.Table {
	t.Helper()
	tbl := signal.NewTable("timestamp")
	var n int
	for _, v := range cols {
		n = len(v)
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / rate
	}
	if err := tbl.SetColumn("timestamp", times); err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(cols))
	for k := range cols {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		if err := tbl.SetColumn(k, cols[k]); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func quietCollector() *report.Collector {
	return report.NewCollectorWithLogger(&logging.NoOpLogger{})
}

func mustOffsets(t *testing.T, entries ...offsets.Entry) *offsets.Table {
	t.Helper()
	tbl, err := offsets.New(entries)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestOffsetAlignerFindsCompanionPeak(t *testing.T) {
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100, 400, 700}, 2.0)}))
	_ = c.Add(leftT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100, 450}, 1.8)}))

	offs := mustOffsets(t,
		offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0},
		offsets.Entry{Location: trial.LeftTibia, Trial: 1, Offset: 0.02},
	)

	collector := quietCollector()
	res, err := NewOffsetAligner(nil, nil, collector).Align(c, offs)
	if err != nil {
		t.Fatalf("Align err=%v", err)
	}
	if ref := res.References[1]; ref.Key != rightT1 || len(ref.Peaks) != 1 || ref.Peaks[0].Index != 100 {
		t.Fatalf("reference=%+v", res.References[1])
	}
	if len(res.Windows) != 2 {
		t.Fatalf("windows=%d", len(res.Windows))
	}

	var left Window
	for _, w := range res.Windows {
		if w.Key == leftT1 {
			left = w
		}
	}
	if left.TargetIndex != 110 || left.Start != 60 || left.End != 160 {
		t.Fatalf("left window=%+v", left)
	}
	if !left.Found || left.Peak.Index != 100 || left.Peak.Value != 1.8 {
		t.Fatalf("left peak=%+v found=%v", left.Peak, left.Found)
	}
	if left.Peak.Index < left.Start || left.Peak.Index > left.End {
		t.Fatalf("peak outside window")
	}

	tbl, _ := c.Get(leftT1)
	idx, _ := peaks.FlagIndices(tbl, "res_g"+AlignedFlagSuffix)
	if !slices.Equal(idx, []int{100}) {
		t.Fatalf("left flags=%v", idx)
	}
	if collector.Len() != 0 {
		t.Fatalf("unexpected diagnostics %v", collector.Items())
	}
}

func TestOffsetAlignerNarrowMargin(t *testing.T) {
	// margin 50 around 100+10 is [60,160]; a narrower margin of 10 gives
	// [100,120] and the peak at 100 sits on the window boundary, so it is
	// not a local maximum of the window
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100}, 2.0)}))
	_ = c.Add(leftT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100}, 1.8)}))
	offs := mustOffsets(t,
		offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0},
		offsets.Entry{Location: trial.LeftTibia, Trial: 1, Offset: 0.02},
	)

	cfg := DefaultOffsetConfig()
	cfg.Margin = 10
	collector := quietCollector()
	res, err := NewOffsetAligner(cfg, nil, collector).Align(c, offs)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range res.Windows {
		if w.Key != leftT1 {
			continue
		}
		if w.Start != 100 || w.End != 120 || w.Found {
			t.Fatalf("window=%+v", w)
		}
	}
	tbl, _ := c.Get(leftT1)
	if idx, _ := peaks.FlagIndices(tbl, "res_g"+AlignedFlagSuffix); len(idx) != 0 {
		t.Fatalf("flag set without a peak: %v", idx)
	}
	for _, r := range res.Rows {
		if r.Key == leftT1 && !math.IsNaN(r.Value) {
			t.Fatalf("row for empty window = %v", r.Value)
		}
	}
	if collector.Count(report.KindEmptyPeakSet) != 1 {
		t.Fatalf("diagnostics=%v", collector.Items())
	}
}

func buildTwoTrials(t *testing.T, order []string) *signal.Collection {
	tables := map[string]*signal.Table{
		rightT1: makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100, 400}, 2.0)}),
		leftT1:  makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{112, 460}, 1.5)}),
		rightT2: makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{300, 600}, 2.5)}),
		leftT2:  makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{285, 640}, 1.2)}),
	}
	c := signal.NewCollection()
	for _, k := range order {
		_ = c.Add(k, tables[k])
	}
	return c
}

func TestOffsetAlignerOrderIndependent(t *testing.T) {
	offs := mustOffsets(t,
		offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0.004},
		offsets.Entry{Location: trial.LeftTibia, Trial: 1, Offset: 0.02},
		offsets.Entry{Location: trial.RightTibia, Trial: 2, Offset: -0.004},
		offsets.Entry{Location: trial.LeftTibia, Trial: 2, Offset: -0.03},
	)

	a := buildTwoTrials(t, []string{rightT1, leftT1, rightT2, leftT2})
	b := buildTwoTrials(t, []string{leftT2, leftT1, rightT2, rightT1})

	resA, err := NewOffsetAligner(nil, nil, quietCollector()).Align(a, offs)
	if err != nil {
		t.Fatal(err)
	}
	resB, err := NewOffsetAligner(nil, nil, quietCollector()).Align(b, offs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resA.Windows, resB.Windows) {
		t.Fatalf("windows differ by collection order\nA=%+v\nB=%+v", resA.Windows, resB.Windows)
	}
	if !reflect.DeepEqual(resA.Rows, resB.Rows) || !reflect.DeepEqual(resA.Counts, resB.Counts) {
		t.Fatalf("summary rows differ by collection order")
	}

	// both trial 1 tables search around the same cached reference index
	for _, w := range resA.Windows {
		switch w.Trial {
		case 1:
			if w.ReferenceIndex != 100 {
				t.Fatalf("trial 1 window uses reference %d", w.ReferenceIndex)
			}
		case 2:
			if w.ReferenceIndex != 300 {
				t.Fatalf("trial 2 window uses reference %d", w.ReferenceIndex)
			}
		}
		if !w.Found {
			t.Fatalf("window not found: %+v", w)
		}
	}
	var leftWin Window
	for _, w := range resA.Windows {
		if w.Key == leftT2 {
			leftWin = w
		}
	}
	if leftWin.TargetIndex != 285 || leftWin.Peak.Index != 285 {
		t.Fatalf("left trial 2 window=%+v", leftWin)
	}
}

func TestOffsetAlignerMissingOffset(t *testing.T) {
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100}, 2.0)}))
	_ = c.Add(leftT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100}, 1.8)}))
	_ = c.Add("garbage", makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100}, 1.8)}))
	offs := mustOffsets(t, offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0})

	collector := quietCollector()
	res, err := NewOffsetAligner(nil, nil, collector).Align(c, offs)
	if err != nil {
		t.Fatalf("missing offset must not abort: %v", err)
	}
	if len(res.Windows) != 1 || res.Windows[0].Key != rightT1 {
		t.Fatalf("windows=%+v", res.Windows)
	}
	if collector.Count(report.KindNoOffsetFound) != 1 {
		t.Fatalf("diagnostics=%v", collector.Items())
	}
	if collector.Count(report.KindUnresolvableIdentity) != 1 {
		t.Fatalf("diagnostics=%v", collector.Items())
	}
	tbl, _ := c.Get(leftT1)
	if tbl.Has("res_g" + AlignedFlagSuffix) {
		t.Fatalf("skipped table received a flag column")
	}
}

func TestOffsetAlignerDuplicateReference(t *testing.T) {
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(500, []int{100}, 2.0)}))
	_ = c.Add("s01_run_right_tibia_33333_trial1", makeTable(t, 500, map[string][]float64{"res_g": bumps(500, []int{100}, 2.0)}))

	_, err := NewOffsetAligner(nil, nil, quietCollector()).BuildReferences(c)
	if !errors.Is(err, report.ErrStructuralViolation) {
		t.Fatalf("err=%v", err)
	}
}

func TestOffsetAlignerAllPeaksCounts(t *testing.T) {
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{100, 400, 700}, 2.0)}))
	_ = c.Add(leftT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(1000, []int{110, 405}, 1.6)}))
	offs := mustOffsets(t,
		offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0},
		offsets.Entry{Location: trial.LeftTibia, Trial: 1, Offset: 0.02},
	)

	cfg := DefaultOffsetConfig()
	cfg.Mode = AllPeaks
	res, err := NewOffsetAligner(cfg, nil, quietCollector()).Align(c, offs)
	if err != nil {
		t.Fatal(err)
	}
	for _, pc := range res.Counts {
		switch pc.Key {
		case rightT1:
			if pc.Reference != 3 || pc.Aligned != 3 || pc.Difference != 0 {
				t.Fatalf("right counts=%+v", pc)
			}
		case leftT1:
			if pc.Reference != 3 || pc.Aligned != 2 || pc.Difference != 1 {
				t.Fatalf("left counts=%+v", pc)
			}
		}
	}
	for _, r := range res.Rows {
		if r.Key == leftT1 && math.Abs(r.Value-1.6) > 1e-12 {
			t.Fatalf("left average=%v", r.Value)
		}
	}
}

func TestOffsetAlignerClampsWindow(t *testing.T) {
	c := signal.NewCollection()
	_ = c.Add(rightT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(200, []int{30}, 2.0)}))
	_ = c.Add(leftT1, makeTable(t, 500, map[string][]float64{"res_g": bumps(200, []int{40}, 1.4)}))
	offs := mustOffsets(t,
		offsets.Entry{Location: trial.RightTibia, Trial: 1, Offset: 0},
		offsets.Entry{Location: trial.LeftTibia, Trial: 1, Offset: -0.06},
	)
	res, err := NewOffsetAligner(nil, nil, quietCollector()).Align(c, offs)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range res.Windows {
		if w.Key == leftT1 && (w.Start != 0 || w.End != 50 || w.Peak.Index != 40) {
			t.Fatalf("clamped window=%+v", w)
		}
	}
}

func TestWindowedAligner(t *testing.T) {
	n := 1000
	ax := make([]float64, n)
	for _, i := range []int{95, 405, 690} {
		ax[i] = -1.5
	}
	tbl := makeTable(t, 1125, map[string][]float64{
		"res_g": bumps(n, []int{100, 400, 700}, 2.0),
		"ax_g":  ax,
		"ay_g":  make([]float64, n),
	})
	c := signal.NewCollection()
	_ = c.Add("s01_run_low_back_44444_trial1", tbl)

	collector := quietCollector()
	res, err := NewWindowedAligner(nil, collector).Align(c)
	if err != nil {
		t.Fatal(err)
	}

	if idx, _ := peaks.FlagIndices(tbl, ReferenceFlagColumn); !slices.Equal(idx, []int{100, 400, 700}) {
		t.Fatalf("reference flags=%v", idx)
	}
	for _, p := range []peaks.Polarity{peaks.Absolute, peaks.Negative} {
		idx, err := peaks.FlagIndices(tbl, WindowedFlagColumn("ax_g", p))
		if err != nil || !slices.Equal(idx, []int{95, 405, 690}) {
			t.Fatalf("%s flags=%v err=%v", p, idx, err)
		}
	}

	got := make(map[string]float64)
	for _, r := range res.Rows {
		got[r.Variable] = r.Value
	}
	if got["ax_g_avg_windowed_abs_peak"] != 1.5 || got["ax_g_avg_windowed_neg_peak"] != 1.5 {
		t.Fatalf("averages=%v", got)
	}
	if !math.IsNaN(got["ay_g_avg_windowed_abs_peak"]) {
		t.Fatalf("flat column average=%v", got["ay_g_avg_windowed_abs_peak"])
	}
	for _, pc := range res.Counts {
		if pc.Variable == "ax_g_windowed_abs_peak" && (pc.Reference != 3 || pc.Difference != 0) {
			t.Fatalf("count=%+v", pc)
		}
	}
	if collector.Count(report.KindMissingColumn) != 2 {
		t.Fatalf("az_g should be reported missing once per polarity: %v", collector.Items())
	}
	if collector.Count(report.KindEmptyPeakSet) != 2 {
		t.Fatalf("ay_g should report an empty peak set per polarity: %v", collector.Items())
	}
}

func TestWindowedAlignerStructuralViolation(t *testing.T) {
	tbl := signal.NewTable("timestamp")
	_ = tbl.SetColumn("timestamp", []float64{0, 2, 1})
	_ = tbl.SetColumn("res_g", []float64{0, 2, 1})
	c := signal.NewCollection()
	_ = c.Add("k", tbl)
	if _, err := NewWindowedAligner(nil, quietCollector()).Align(c); !errors.Is(err, report.ErrStructuralViolation) {
		t.Fatalf("err=%v", err)
	}
}

func TestWindowedAlignerNegativeWindow(t *testing.T) {
	res := bumps(1000, []int{100, 400, 700}, 3)
	c := signal.NewCollection()
	_ = c.Add("k", makeTable(t, 500, map[string][]float64{"res_g": res, "ax_g": res}))

	cfg := DefaultWindowedConfig()
	cfg.Columns = []string{"ax_g"}
	cfg.Polarities = []peaks.Polarity{peaks.Absolute}
	cfg.WindowSize = -10

	col := quietCollector()
	out, err := NewWindowedAligner(cfg, col).Align(c)
	if err != nil {
		t.Fatal(err)
	}
	// a zero-width window holds no strict local maximum
	if len(out.Rows) != 1 || !math.IsNaN(out.Rows[0].Value) {
		t.Fatalf("rows=%+v", out.Rows)
	}
	if col.Count(report.KindEmptyPeakSet) != 1 {
		t.Errorf("diagnostics=%v", col.Items())
	}
}
