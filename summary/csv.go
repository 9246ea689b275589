package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// NA is written for undefined values.
const NA = "NA"

// FormatValue renders v for CSV output.
func FormatValue(v float64) string {
	if IsUndefined(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeAll(w io.Writer, header []string, n int, record func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes key,variable,value rows.
func WriteCSV(w io.Writer, rows []Row) error {
	return writeAll(w, []string{"key", "variable", "value"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.Key, r.Variable, FormatValue(r.Value)}
	})
}

// WritePeakCountsCSV writes the alignment audit table.
func WritePeakCountsCSV(w io.Writer, counts []PeakCount) error {
	header := []string{"key", "variable", "num_reference_peaks", "num_aligned_peaks", "difference"}
	return writeAll(w, header, len(counts), func(i int) []string {
		c := counts[i]
		return []string{
			c.Key,
			c.Variable,
			strconv.Itoa(c.Reference),
			strconv.Itoa(c.Aligned),
			strconv.Itoa(c.Difference),
		}
	})
}

// WriteExportCSV writes sub_id,run_type,sensor,variable,value rows.
func WriteExportCSV(w io.Writer, rows []ExportRow) error {
	header := []string{"sub_id", "run_type", "sensor", "variable", "value"}
	return writeAll(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.SubjectID, r.RunType, r.Sensor, r.Variable, FormatValue(r.Value)}
	})
}

// WriteCSV writes the wide table with one row per key.
func (wd *Wide) WriteCSV(w io.Writer) error {
	header := append([]string{"key"}, wd.Variables...)
	return writeAll(w, header, len(wd.Keys), func(i int) []string {
		key := wd.Keys[i]
		rec := make([]string, 0, len(wd.Variables)+1)
		rec = append(rec, key)
		for _, v := range wd.Variables {
			rec = append(rec, FormatValue(wd.Value(key, v)))
		}
		return rec
	})
}
