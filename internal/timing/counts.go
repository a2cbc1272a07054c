package timing

import "math"

// Approach indexes the four directional counts.
type Approach int

const (
	North Approach = iota
	East
	South
	West
)

// NumApproaches is the number of approaches feeding the intersection.
const NumApproaches = 4

func (a Approach) String() string {
	switch a {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Counts holds vehicle counts per approach in N, E, S, W order. Values are
// non-negative whenever the Counts came from NewCounts.
type Counts [NumApproaches]int

// DefaultCounts is reported when no result has been recorded yet.
var DefaultCounts = Counts{5, 5, 5, 5}

// MaxCount bounds a single approach count so that axis totals and ratios
// cannot overflow.
const MaxCount = math.MaxInt32

// NewCounts validates raw counts, typically decoded from a request body or
// produced by the vision stub.
func NewCounts(values []int) (Counts, error) {
	var c Counts
	if len(values) != NumApproaches {
		return c, invalidInput("expected %d counts, got %d", NumApproaches, len(values))
	}
	for i, v := range values {
		if v < 0 {
			return c, invalidInput("%s count is negative (%d)", Approach(i), v)
		}
		if v > MaxCount {
			return c, invalidInput("%s count exceeds %d (%d)", Approach(i), MaxCount, v)
		}
		c[i] = v
	}
	return c, nil
}

// NSTotal is the combined north and south count.
func (c Counts) NSTotal() int { return c[North] + c[South] }

// EWTotal is the combined east and west count.
func (c Counts) EWTotal() int { return c[East] + c[West] }

// Slice returns the counts as a fresh slice, which is how they are encoded
// on the wire.
func (c Counts) Slice() []int {
	out := make([]int, NumApproaches)
	copy(out, c[:])
	return out
}
