package measures

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/imu-gait/algorithms/stats"
	"github.com/RyanBlaney/imu-gait/peaks"
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/signal"
)

// Fence selects which outlier bounds to use.
type Fence int

const (
	// IQRFence is [Q1 - k*IQR, Q3 + k*IQR].
	IQRFence Fence = iota
	// ZFence is [mean - z*SD, mean + z*SD].
	ZFence
)

// ParseFence accepts "iqr" and "z".
func ParseFence(s string) (Fence, error) {
	switch s {
	case "", "iqr", "k":
		return IQRFence, nil
	case "z", "zscore":
		return ZFence, nil
	default:
		return IQRFence, fmt.Errorf("unknown outlier fence %q", s)
	}
}

// OutlierRow is the per-table, per-column outlier summary.
type OutlierRow struct {
	Key      string               `json:"id" yaml:"id"`
	Variable string               `json:"variable" yaml:"variable"`
	Summary  stats.OutlierSummary `json:"summary" yaml:"summary"`
}

// Bounds returns the fence selected by f.
func (r OutlierRow) Bounds(f Fence) stats.Bounds {
	if f == ZFence {
		return r.Summary.ZFor
	}
	return r.Summary.IQRFor
}

// RemovedCount reports how many rows RemoveOutliers excluded from a table.
type RemovedCount struct {
	Key   string `json:"id" yaml:"id"`
	Count int    `json:"count" yaml:"count"`
}

// SummarizeOutliers computes IQR (multiplier k) and z-score (multiplier z)
// fences for each column of each table.
func (b *Builder) SummarizeOutliers(c *signal.Collection, columns []string, k, z float64) []OutlierRow {
	var rows []OutlierRow
	c.Each(func(key string, t *signal.Table) bool {
		for _, col := range columns {
			values, err := t.Column(col)
			if err != nil {
				b.collector.Record("outlier_summary", key, col, err)
				continue
			}
			s, err := stats.SummarizeOutliers(values, k, z)
			if err != nil {
				b.collector.Record("outlier_summary", key, col, err)
				continue
			}
			rows = append(rows, OutlierRow{Key: key, Variable: col, Summary: *s})
		}
		return true
	})
	return rows
}

// BoundsByKey picks the fence of variable for every key.
func BoundsByKey(rows []OutlierRow, variable string, f Fence) map[string]stats.Bounds {
	out := make(map[string]stats.Bounds)
	for _, r := range rows {
		if r.Variable == variable {
			out[r.Key] = r.Bounds(f)
		}
	}
	return out
}

// ThresholdsFromOutliers turns fences into per-key peak height ranges.
func ThresholdsFromOutliers(rows []OutlierRow, variable string, f Fence) *peaks.ThresholdTable {
	tt := peaks.NewThresholdTable()
	for key, b := range BoundsByKey(rows, variable, f) {
		tt.Set(key, peaks.Thresholds{Min: b.Lower, Max: b.Upper})
	}
	return tt
}

// RemoveOutliers returns a new collection in which every table keeps only
// the rows whose column value lies inside its key's bounds (inclusive).
// The reported count is exactly the number of rows dropped. Tables without
// bounds or without the column are carried over unchanged with a
// diagnostic.
func (b *Builder) RemoveOutliers(c *signal.Collection, column string, bounds map[string]stats.Bounds) (*signal.Collection, []RemovedCount) {
	out := signal.NewCollection()
	var counts []RemovedCount

	c.Each(func(key string, t *signal.Table) bool {
		values, err := t.Column(column)
		if err != nil {
			b.collector.Record("remove_outliers", key, column, err)
			out.Set(key, t.Clone())
			return true
		}
		bd, ok := bounds[key]
		if !ok || math.IsNaN(bd.Lower) || math.IsNaN(bd.Upper) {
			b.collector.Add(report.Diagnostic{
				Key: key, Column: column, Stage: "remove_outliers",
				Kind: report.KindInput, Reason: "no outlier bounds for table",
			})
			out.Set(key, t.Clone())
			return true
		}

		kept := t.Filter(func(row int) bool { return bd.Contains(values[row]) })
		out.Set(key, kept)
		counts = append(counts, RemovedCount{Key: key, Count: t.Len() - kept.Len()})
		return true
	})
	return out, counts
}
