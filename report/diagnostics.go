package report

import (
	"fmt"

	"github.com/RyanBlaney/imu-gait/logging"
)

// Diagnostic is a structured warning tied to one trial key.
type Diagnostic struct {
	Key    string `json:"key" yaml:"key"`
	Column string `json:"column,omitempty" yaml:"column,omitempty"`
	Stage  string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Reason string `json:"reason" yaml:"reason"`
}

func (d Diagnostic) String() string {
	if d.Column != "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Key, d.Column, d.Kind, d.Reason)
	}
	return fmt.Sprintf("%s %s: %s", d.Key, d.Kind, d.Reason)
}

// Collector accumulates diagnostics for one pipeline run. A nil *Collector
// is valid and only logs.
type Collector struct {
	items  []Diagnostic
	logger logging.Logger
}

// NewCollector creates a collector that also logs every entry at WARN.
func NewCollector() *Collector {
	return &Collector{
		logger: logging.WithFields(logging.Fields{
			"component": "diagnostics",
		}),
	}
}

// NewCollectorWithLogger is NewCollector with an explicit logger.
func NewCollectorWithLogger(logger logging.Logger) *Collector {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Collector{logger: logger}
}

// Add records d.
func (c *Collector) Add(d Diagnostic) {
	if c == nil {
		logging.Warn(d.Reason, logging.Fields{"key": d.Key, "column": d.Column, "kind": string(d.Kind)})
		return
	}
	c.items = append(c.items, d)
	c.logger.Warn(d.Reason, logging.Fields{
		"key":    d.Key,
		"column": d.Column,
		"stage":  d.Stage,
		"kind":   string(d.Kind),
	})
}

// Record converts err into a diagnostic, classifying it with KindOf.
func (c *Collector) Record(stage, key, column string, err error) {
	if err == nil {
		return
	}
	c.Add(Diagnostic{
		Key:    key,
		Column: column,
		Stage:  stage,
		Kind:   KindOf(err),
		Reason: err.Error(),
	})
}

// Items returns a copy of the collected diagnostics in insertion order.
func (c *Collector) Items() []Diagnostic {
	if c == nil {
		return nil
	}
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of diagnostics.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Count returns how many diagnostics of kind k were recorded.
func (c *Collector) Count(k Kind) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, d := range c.items {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// CountsByKind groups diagnostic counts by kind.
func (c *Collector) CountsByKind() map[Kind]int {
	out := make(map[Kind]int)
	if c == nil {
		return out
	}
	for _, d := range c.items {
		out[d.Kind]++
	}
	return out
}
