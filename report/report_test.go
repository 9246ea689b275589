package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/imu-gait/logging"
)

func TestKindOfWrapped(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("col res_g: %w", ErrMissingColumn), KindMissingColumn},
		{fmt.Errorf("key x: %w", ErrUnresolvableIdentity), KindUnresolvableIdentity},
		{fmt.Errorf("left_tibia/3: %w", ErrNoOffsetFound), KindNoOffsetFound},
		{ErrEmptyPeakSet, KindEmptyPeakSet},
		{fmt.Errorf("dfa: %w", ErrEstimatorFailure), KindEstimatorFailure},
		{fmt.Errorf("ragged: %w", ErrStructuralViolation), KindStructuralViolation},
		{errors.New("other"), KindOther},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v)=%s want %s", tc.err, got, tc.want)
		}
	}
}

func TestCollectorRecordsAndCounts(t *testing.T) {
	c := NewCollectorWithLogger(&logging.NoOpLogger{})
	c.Record("peaks", "s01_trial1", "res_g", fmt.Errorf("res_g: %w", ErrMissingColumn))
	c.Record("peaks", "s01_trial2", "res_g", fmt.Errorf("res_g: %w", ErrMissingColumn))
	c.Record("align", "s01_trial2", "", fmt.Errorf("x: %w", ErrNoOffsetFound))
	c.Record("align", "s01_trial2", "", nil)

	if c.Len() != 3 {
		t.Fatalf("len=%d want 3", c.Len())
	}
	if c.Count(KindMissingColumn) != 2 {
		t.Fatalf("missing column count=%d want 2", c.Count(KindMissingColumn))
	}
	items := c.Items()
	if items[2].Stage != "align" || items[2].Kind != KindNoOffsetFound {
		t.Fatalf("unexpected third item %+v", items[2])
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	prev := logging.GetGlobalLogger()
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	defer logging.SetGlobalLogger(prev)

	var c *Collector
	c.Record("stage", "k", "", ErrEmptyPeakSet)
	if c.Len() != 0 || c.Items() != nil {
		t.Fatalf("nil collector should stay empty")
	}
}

func TestRunReportYAML(t *testing.T) {
	c := NewCollectorWithLogger(&logging.NoOpLogger{})
	c.Record("stride", "s01_trial1", "stride_times", fmt.Errorf("dfa: %w", ErrEstimatorFailure))

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := NewRunReport(start)
	r.Tables = 4
	r.Finish(c, start.Add(time.Minute))

	var buf bytes.Buffer
	if err := r.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML err=%v", err)
	}
	if !strings.Contains(buf.String(), "estimator_failure: 1") {
		t.Fatalf("counts missing from report:\n%s", buf.String())
	}

	var back RunReport
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal err=%v", err)
	}
	if back.RunID != r.RunID || len(back.Diagnostics) != 1 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
