package summary

import (
	"github.com/RyanBlaney/imu-gait/report"
	"github.com/RyanBlaney/imu-gait/trial"
)

// ExportRow is a summary row with its key split into the identity fields
// used by the downstream statistics sheets.
type ExportRow struct {
	SubjectID string  `json:"sub_id" yaml:"sub_id"`
	RunType   string  `json:"run_type" yaml:"run_type"`
	Sensor    string  `json:"sensor" yaml:"sensor"`
	Location  string  `json:"location" yaml:"location"`
	Trial     int     `json:"trial" yaml:"trial"`
	Variable  string  `json:"variable" yaml:"variable"`
	Value     float64 `json:"value" yaml:"value"`
}

// Export resolves every row key. Rows whose key does not resolve are
// dropped and recorded in collector.
func Export(rows []Row, resolver *trial.Resolver, collector *report.Collector) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	failed := make(map[string]bool)
	for _, r := range rows {
		id, err := resolver.Resolve(r.Key)
		if err != nil {
			if !failed[r.Key] {
				failed[r.Key] = true
				collector.Record("export", r.Key, "", err)
			}
			continue
		}
		out = append(out, ExportRow{
			SubjectID: id.Subject,
			RunType:   id.RunType,
			Sensor:    id.Serial,
			Location:  string(id.Location),
			Trial:     id.Trial,
			Variable:  r.Variable,
			Value:     r.Value,
		})
	}
	return out
}
