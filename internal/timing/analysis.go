package timing

// Pattern labels which axis carries more traffic.
type Pattern string

const (
	Balanced Pattern = "balanced"
	NSHeavy  Pattern = "ns_heavy"
	EWHeavy  Pattern = "ew_heavy"
)

// Analysis is a diagnostic summary of the counts behind a plan. Nothing
// downstream makes control decisions from it.
type Analysis struct {
	Pattern Pattern `json:"pattern"`
	Counts  []int   `json:"counts"`
	NSTotal int     `json:"ns_total"`
	EWTotal int     `json:"ew_total"`
	Ratio   float64 `json:"ratio"`
}

func patternOf(ns, ew int) Pattern {
	switch {
	case ns == ew:
		return Balanced
	case ns > ew:
		return NSHeavy
	default:
		return EWHeavy
	}
}

// Analyse summarises validated counts.
func Analyse(c Counts) Analysis {
	ns, ew := c.NSTotal(), c.EWTotal()
	return Analysis{
		Pattern: patternOf(ns, ew),
		Counts:  c.Slice(),
		NSTotal: ns,
		EWTotal: ew,
		Ratio:   RatioOf(c).Reported(),
	}
}
