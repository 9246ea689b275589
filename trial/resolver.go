package trial

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/RyanBlaney/imu-gait/report"
)

// Schema is one versioned key layout. Pattern must be anchored and define
// the named groups subject, run_type, location and trial; serial is
// optional.
type Schema struct {
	Name    string
	Version int
	Pattern *regexp.Regexp
}

// ID is the schema's "name/version" label.
func (s Schema) ID() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Version)
}

var (
	// IMUValidationV1 matches keys such as
	// imu_val_001_time1_og_run_left_tibia_12345_trial3.
	IMUValidationV1 = Schema{
		Name:    "imu_val",
		Version: 1,
		Pattern: regexp.MustCompile(`^(?P<subject>imu_val_\d+)_(?P<run_type>time\d+(?:_[a-z]+)+?)_(?P<location>[a-z]+_[a-z]+)_(?P<serial>\d{5})_trial(?P<trial>\d+)$`),
	}

	// RunV1 matches keys such as s07_treadmill_fast_low_back_54321_trial2.
	RunV1 = Schema{
		Name:    "run",
		Version: 1,
		Pattern: regexp.MustCompile(`^(?P<subject>[a-z]+\d+)_(?P<run_type>[a-z0-9]+(?:_[a-z0-9]+)*?)_(?P<location>[a-z]+_[a-z]+)_(?P<serial>\d{5})_trial(?P<trial>\d+)$`),
	}
)

// DefaultSchemas is the schema set the pipeline resolves against.
func DefaultSchemas() []Schema {
	return []Schema{IMUValidationV1, RunV1}
}

// Resolver parses dataset keys against a fixed schema set. A key must match
// exactly one schema; zero or several matches are both rejected.
type Resolver struct {
	schemas []Schema
}

// NewResolver creates a resolver; with no schemas it uses DefaultSchemas.
func NewResolver(schemas ...Schema) *Resolver {
	if len(schemas) == 0 {
		schemas = DefaultSchemas()
	}
	return &Resolver{schemas: schemas}
}

// Schemas returns the schemas in resolution order.
func (r *Resolver) Schemas() []Schema {
	out := make([]Schema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Resolve parses key. Failures wrap report.ErrUnresolvableIdentity.
func (r *Resolver) Resolve(key string) (Identity, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return Identity{}, fmt.Errorf("empty key: %w", report.ErrUnresolvableIdentity)
	}

	var matched []Identity
	var ids []string
	for _, s := range r.schemas {
		id, ok, err := s.parse(normalized)
		if err != nil {
			return Identity{}, fmt.Errorf("key %q (%s): %v: %w", key, s.ID(), err, report.ErrUnresolvableIdentity)
		}
		if ok {
			matched = append(matched, id)
			ids = append(ids, s.ID())
		}
	}

	switch len(matched) {
	case 0:
		return Identity{}, fmt.Errorf("key %q matches no schema: %w", key, report.ErrUnresolvableIdentity)
	case 1:
		matched[0].Key = key
		return matched[0], nil
	default:
		ambiguous := matched[0]
		for _, m := range matched[1:] {
			if m.Subject != ambiguous.Subject || m.RunType != ambiguous.RunType ||
				m.Location != ambiguous.Location || m.Trial != ambiguous.Trial {
				return Identity{}, fmt.Errorf("key %q is ambiguous across schemas %s: %w",
					key, strings.Join(ids, ", "), report.ErrUnresolvableIdentity)
			}
		}
		// Every schema agrees on the tuple; the first one wins.
		ambiguous.Key = key
		return ambiguous, nil
	}
}

func (s Schema) parse(key string) (Identity, bool, error) {
	m := s.Pattern.FindStringSubmatch(key)
	if m == nil {
		return Identity{}, false, nil
	}

	group := func(name string) string {
		if i := s.Pattern.SubexpIndex(name); i >= 0 {
			return m[i]
		}
		return ""
	}

	trialNum, err := strconv.Atoi(group("trial"))
	if err != nil {
		return Identity{}, false, fmt.Errorf("trial number %q", group("trial"))
	}
	if trialNum <= 0 {
		return Identity{}, false, fmt.Errorf("trial number %d is not positive", trialNum)
	}

	id := Identity{
		Subject:  group("subject"),
		RunType:  group("run_type"),
		Location: ParseLocation(group("location")),
		Serial:   group("serial"),
		Trial:    trialNum,
		Schema:   s.ID(),
	}
	if id.Subject == "" || id.RunType == "" {
		return Identity{}, false, fmt.Errorf("empty subject or run type")
	}
	return id, true, nil
}
