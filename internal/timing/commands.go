package timing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Signal is the aspect shown to a group of approaches.
type Signal string

const (
	Green  Signal = "GREEN"
	Yellow Signal = "YELLOW"
	Red    Signal = "RED"
)

// PhaseCommand is one step of the cycle. Green and yellow phases set NS and
// EW individually; all-red phases set All and leave NS/EW empty.
type PhaseCommand struct {
	Name        string `json:"-"`
	NS          Signal `json:"ns,omitempty"`
	EW          Signal `json:"ew,omitempty"`
	All         Signal `json:"all,omitempty"`
	Duration    int    `json:"duration"`
	Description string `json:"description"`
}

// NumPhases is the fixed length of a command sequence.
const NumPhases = 6

// CommandSequence is the ordered cycle: NS green, NS yellow, all red,
// EW green, EW yellow, all red.
type CommandSequence [NumPhases]PhaseCommand

// BuildCommandSequence maps a plan onto the six phases, taking durations
// verbatim from the plan.
func BuildCommandSequence(p Plan) CommandSequence {
	return CommandSequence{
		{Name: "phase1", NS: Green, EW: Red, Duration: p.NSGreen, Description: "North/South green phase"},
		{Name: "phase2", NS: Yellow, EW: Red, Duration: p.YellowTime, Description: "North/South yellow clearance"},
		{Name: "phase3", All: Red, Duration: p.AllRedTime, Description: "All-red buffer"},
		{Name: "phase4", NS: Red, EW: Green, Duration: p.EWGreen, Description: "East/West green phase"},
		{Name: "phase5", NS: Red, EW: Yellow, Duration: p.YellowTime, Description: "East/West yellow clearance"},
		{Name: "phase6", All: Red, Duration: p.AllRedTime, Description: "All-red buffer"},
	}
}

// TotalDuration sums the phase durations.
func (s CommandSequence) TotalDuration() int {
	total := 0
	for _, c := range s {
		total += c.Duration
	}
	return total
}

// MarshalJSON encodes the sequence as an object keyed by phase name, in
// cycle order.
func (s CommandSequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("phase%d", i+1)
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form produced by MarshalJSON.
func (s *CommandSequence) UnmarshalJSON(data []byte) error {
	var phases map[string]PhaseCommand
	if err := json.Unmarshal(data, &phases); err != nil {
		return err
	}
	for i := range s {
		name := fmt.Sprintf("phase%d", i+1)
		c, ok := phases[name]
		if !ok {
			return fmt.Errorf("missing %s", name)
		}
		c.Name = name
		s[i] = c
	}
	return nil
}
