package timing

import "math"

// UnboundedRatioValue is the presentation value of a ratio with no east/west
// traffic.
const UnboundedRatioValue = 999.0

// Ratio is nsTotal / ewTotal. When ewTotal is zero the ratio is Unbounded
// rather than a floating-point infinity, and sorts above every finite value.
type Ratio struct {
	Value     float64
	Unbounded bool
}

// RatioOf computes the north/south to east/west ratio for the counts.
func RatioOf(c Counts) Ratio {
	ew := c.EWTotal()
	if ew == 0 {
		return Ratio{Unbounded: true}
	}
	return Ratio{Value: float64(c.NSTotal()) / float64(ew)}
}

// AtLeast reports whether the ratio is greater than or equal to threshold.
func (r Ratio) AtLeast(threshold float64) bool {
	return r.Unbounded || r.Value >= threshold
}

// Reported returns the ratio rounded to two decimals, with the unbounded case
// mapped to UnboundedRatioValue.
func (r Ratio) Reported() float64 {
	if r.Unbounded {
		return UnboundedRatioValue
	}
	return math.Round(r.Value*100) / 100
}
