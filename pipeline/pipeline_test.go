package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/imu-gait/config"
	"github.com/RyanBlaney/imu-gait/logging"
	"github.com/RyanBlaney/imu-gait/offsets"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
	"github.com/RyanBlaney/imu-gait/summary"
	"github.com/RyanBlaney/imu-gait/trial"
)

const (
	rate   = 500.0
	n      = 3000
	rightT = "s01_run_right_tibia_11111_trial1"
	leftT  = "s01_run_left_tibia_22222_trial1"
	badT   = "s01_run_right_tibia_11111_trial2"
)

// recording has a vertical impact of 30 m/s/s every 300 samples, starting
// at start.
func recording(t *testing.T, start int) *signal.Table {
	t.Helper()
	times := make([]float64, n)
	ax := make([]float64, n)
	ay := make([]float64, n)
	az := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / rate
	}
	for i := start; i < n; i += 300 {
		az[i] = 30
	}
	tbl := signal.NewTable("timestamp")
	for name, v := range map[string][]float64{
		"timestamp": times, "ax_m/s/s": ax, "ay_m/s/s": ay, "az_m/s/s": az,
	} {
		if err := tbl.SetColumn(name, v); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Preprocess.SampleRate = rate
	cfg.Preprocess.CropSeconds = 0
	cfg.Preprocess.FilterColumns = nil
	cfg.Stride.TotalMinutes = 0.1
	cfg.OffsetAlign.Enabled = true
	cfg.BadTrials = []int{2}
	return cfg
}

func testCollection(t *testing.T) *signal.Collection {
	c := signal.NewCollection()
	c.Set(rightT, recording(t, 150))
	c.Set(leftT, recording(t, 170))
	c.Set(badT, recording(t, 150))
	return c
}

func testOffsets(t *testing.T) *offsets.Table {
	offs, err := offsets.New([]offsets.Entry{
		{Location: trial.RightTibia, Trial: 1, Offset: 0},
		{Location: trial.LeftTibia, Trial: 1, Offset: 0.04},
	})
	if err != nil {
		t.Fatal(err)
	}
	return offs
}

func value(w *summary.Wide, key, variable string) float64 {
	return w.Value(key, variable)
}

func TestRunEndToEnd(t *testing.T) {
	col := report.NewCollectorWithLogger(&logging.NoOpLogger{})
	c := testCollection(t)

	res, err := New(testConfig(), col).Run(context.Background(), c, testOffsets(t))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Dropped) != 1 || res.Dropped[0] != badT {
		t.Errorf("dropped = %v, want [%s]", res.Dropped, badT)
	}
	if _, ok := c.Get(badT); ok {
		t.Error("bad trial still in collection")
	}

	w := summary.Pivot(res.Rows)
	impact := 30 / 9.81
	for _, key := range []string{rightT, leftT} {
		if v := value(w, key, "res_g_avg_peak"); math.Abs(v-impact) > 1e-9 {
			t.Errorf("%s res_g_avg_peak = %v, want %v", key, v, impact)
		}
		if v := value(w, key, "stride_times_mean"); math.Abs(v-0.6) > 1e-9 {
			t.Errorf("%s stride_times_mean = %v, want 0.6", key, v)
		}
		if v := value(w, key, "stride_times_spm"); math.Abs(v-90) > 1e-9 {
			t.Errorf("%s stride_times_spm = %v, want 90", key, v)
		}
		if v := value(w, key, "az_g_avg_windowed_abs_peak"); math.Abs(v-impact) > 1e-9 {
			t.Errorf("%s windowed abs peak = %v, want %v", key, v, impact)
		}
		if v := value(w, key, "res_g_avg_aligned_peak"); math.Abs(v-impact) > 1e-9 {
			t.Errorf("%s aligned peak = %v, want %v", key, v, impact)
		}
	}

	var found bool
	for _, win := range res.Windows {
		if win.Key == leftT {
			found = true
			if !win.Found || win.Peak.Index != 170 {
				t.Errorf("left window = %+v, want peak at 170", win)
			}
		}
	}
	if !found {
		t.Error("no window for left tibia")
	}

	if len(res.Export) == 0 || res.Export[0].SubjectID != "s01" {
		t.Errorf("export = %v", res.Export)
	}
	if res.Report.Tables != 2 || res.Report.SummaryRows != len(res.Rows) {
		t.Errorf("report = %+v", res.Report)
	}
	if res.Report.Settings == nil {
		t.Error("report settings missing")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.OffsetAlign.Enabled = false
	_, err := New(cfg, report.NewCollectorWithLogger(&logging.NoOpLogger{})).Run(ctx, testCollection(t), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunRequiresOffsets(t *testing.T) {
	_, err := New(testConfig(), report.NewCollectorWithLogger(&logging.NoOpLogger{})).Run(context.Background(), testCollection(t), nil)
	if err == nil {
		t.Fatal("expected error without offset table")
	}
}
