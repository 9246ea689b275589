package report

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunReport is the end-of-run summary written next to the result tables.
type RunReport struct {
	RunID       string         `yaml:"run_id"`
	StartedAt   time.Time      `yaml:"started_at"`
	FinishedAt  time.Time      `yaml:"finished_at"`
	Tables      int            `yaml:"tables"`
	SummaryRows int            `yaml:"summary_rows"`
	Settings    map[string]any `yaml:"settings,omitempty"`
	Counts      map[Kind]int   `yaml:"diagnostic_counts"`
	Diagnostics []Diagnostic   `yaml:"diagnostics"`
}

// NewRunReport starts a report with a fresh run id.
func NewRunReport(started time.Time) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Counts:    make(map[Kind]int),
	}
}

// Finish copies the collector contents into the report.
func (r *RunReport) Finish(c *Collector, finished time.Time) {
	r.FinishedAt = finished
	r.Diagnostics = c.Items()
	r.Counts = c.CountsByKind()
}

// WriteYAML encodes the report to w.
func (r *RunReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	return enc.Close()
}
