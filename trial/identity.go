// Package trial resolves dataset keys into the (subject, run type, sensor
// location, trial number) tuple used as the join key across the pipeline.
package trial

import "fmt"

// Location is the body segment an IMU was strapped to.
type Location string

const (
	LeftTibia       Location = "left_tibia"
	RightTibia      Location = "right_tibia"
	LowBack         Location = "low_back"
	LocationUnknown Location = "unknown"
)

// ParseLocation maps a token onto a known location, LocationUnknown otherwise.
func ParseLocation(s string) Location {
	switch Location(s) {
	case LeftTibia, RightTibia, LowBack:
		return Location(s)
	default:
		return LocationUnknown
	}
}

// Known reports whether l is one of the named body locations.
func (l Location) Known() bool {
	return l != LocationUnknown && ParseLocation(string(l)) == l
}

// Identity is the structured form of a dataset key.
type Identity struct {
	Key      string   `json:"key"`
	Subject  string   `json:"subject"`
	RunType  string   `json:"run_type"`
	Location Location `json:"location"`
	Serial   string   `json:"serial,omitempty"`
	Trial    int      `json:"trial"`
	Schema   string   `json:"schema"`
}

// Pair is the composite (location, trial) join key.
type Pair struct {
	Location Location
	Trial    int
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/trial%d", p.Location, p.Trial)
}

// Pair returns the (location, trial) join key of the identity.
func (id Identity) Pair() Pair {
	return Pair{Location: id.Location, Trial: id.Trial}
}

func (id Identity) String() string {
	return id.Key
}
