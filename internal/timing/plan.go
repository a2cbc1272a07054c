// Package timing converts per-approach vehicle counts into a signal timing
// plan and the six-phase command sequence a light controller runs.
//
// Everything here is pure: the same counts always produce the same plan, and
// no function touches shared state.
package timing

const (
	MinGreen   = 20
	MaxGreen   = 60
	YellowTime = 3
	AllRedTime = 2
)

// Plan is the timing for one full cycle, all durations in seconds.
type Plan struct {
	NSGreen    int `json:"ns_green"`
	EWGreen    int `json:"ew_green"`
	YellowTime int `json:"yellow_time"`
	AllRedTime int `json:"all_red_time"`
	TotalCycle int `json:"total_cycle"`
}

// greenSplit is a (heavier, lighter) pair of green times.
type greenSplit struct {
	heavier int
	lighter int
}

// splits are checked in order; the first bucket whose threshold the ratio
// reaches wins. Lower edges are inclusive.
var splits = []struct {
	minRatio float64
	split    greenSplit
}{
	{3.0, greenSplit{55, 20}},
	{2.0, greenSplit{48, 25}},
	{1.5, greenSplit{42, 30}},
}

var balancedSplit = greenSplit{35, 35}

func baseSplit(r Ratio) greenSplit {
	for _, b := range splits {
		if r.AtLeast(b.minRatio) {
			return b.split
		}
	}
	return balancedSplit
}

func clampGreen(v int) int {
	if v < MinGreen {
		return MinGreen
	}
	if v > MaxGreen {
		return MaxGreen
	}
	return v
}

// CycleLength returns the cycle length for the given green times.
func CycleLength(nsGreen, ewGreen int) int {
	return nsGreen + ewGreen + 2*YellowTime + 2*AllRedTime
}

// PlanFor derives the plan for already-validated counts.
func PlanFor(c Counts) Plan {
	split := baseSplit(RatioOf(c))
	ns, ew := split.heavier, split.lighter
	// Swap strictly when east/west carries more traffic; a tie keeps the
	// heavier green on north/south.
	if c.EWTotal() > c.NSTotal() {
		ns, ew = ew, ns
	}
	ns = clampGreen(ns)
	ew = clampGreen(ew)

	return Plan{
		NSGreen:    ns,
		EWGreen:    ew,
		YellowTime: YellowTime,
		AllRedTime: AllRedTime,
		TotalCycle: CycleLength(ns, ew),
	}
}

// ComputeTimings validates values and returns the timing plan. Invalid input
// fails with *InvalidInputError.
func ComputeTimings(values []int) (Plan, error) {
	c, err := NewCounts(values)
	if err != nil {
		return Plan{}, err
	}
	return PlanFor(c), nil
}
