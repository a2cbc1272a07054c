package history

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/smart-traffic/internal/timing"
)

// Stats describes one series of the history.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P85    float64 `json:"p85"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary aggregates the retained history.
type Summary struct {
	Count      int                    `json:"count"`
	NSGreen    Stats                  `json:"ns_green"`
	EWGreen    Stats                  `json:"ew_green"`
	TotalCycle Stats                  `json:"total_cycle"`
	Vehicles   Stats                  `json:"vehicles"`
	Patterns   map[timing.Pattern]int `json:"patterns"`
	Sources    map[Source]int         `json:"sources"`
}

// Summary computes statistics over every retained entry. An empty
// history yields zero Stats.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	entries, err := s.Recent(ctx, s.limit)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load history for summary: %w", err)
	}
	return Summarise(entries), nil
}

// Summarise computes statistics over entries.
func Summarise(entries []Entry) Summary {
	sum := Summary{
		Count:    len(entries),
		Patterns: map[timing.Pattern]int{},
		Sources:  map[Source]int{},
	}
	if len(entries) == 0 {
		return sum
	}

	ns := make([]float64, len(entries))
	ew := make([]float64, len(entries))
	cycle := make([]float64, len(entries))
	vehicles := make([]float64, len(entries))
	for i, e := range entries {
		ns[i] = float64(e.Plan.NSGreen)
		ew[i] = float64(e.Plan.EWGreen)
		cycle[i] = float64(e.Plan.TotalCycle)
		vehicles[i] = float64(e.Counts.NSTotal() + e.Counts.EWTotal())
		sum.Patterns[e.Pattern]++
		sum.Sources[e.Source]++
	}

	sum.NSGreen = describe(ns)
	sum.EWGreen = describe(ew)
	sum.TotalCycle = describe(cycle)
	sum.Vehicles = describe(vehicles)
	return sum
}

// describe sorts x in place.
func describe(x []float64) Stats {
	sort.Float64s(x)
	st := Stats{
		Mean: stat.Mean(x, nil),
		P85:  stat.Quantile(0.85, stat.Empirical, x, nil),
		Min:  floats.Min(x),
		Max:  floats.Max(x),
	}
	if len(x) > 1 {
		st.StdDev = stat.StdDev(x, nil)
	}
	return st
}
