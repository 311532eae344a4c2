package decode

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Run is a maximal span of frames [First, Last] decoded to the same label.
type Run struct {
	First int
	Last  int
	Label int
}

// Runs splits a label path at every label change.
func Runs(path []int) []Run {
	if len(path) == 0 {
		return nil
	}
	runs := make([]Run, 0, 8)
	start := 0
	for t := 1; t <= len(path); t++ {
		if t == len(path) || path[t] != path[start] {
			runs = append(runs, Run{First: start, Last: t - 1, Label: path[start]})
			start = t
		}
	}
	return runs
}

// Span maps a run onto the time grid. The run ends where the next one starts;
// the final run ends at the last grid value.
func (r Run) Span(grid []float64) (float64, float64) {
	start := grid[r.First]
	if r.Last+1 < len(grid) {
		return start, grid[r.Last+1]
	}
	return start, grid[len(grid)-1]
}

// Confidence pools per-frame log-likelihoods of the run's label by averaging.
// A non-finite mean, which a zero-probability frame produces, becomes 0.
func (r Run) Confidence(loglik []float64) float64 {
	mean := stat.Mean(loglik[r.First:r.Last+1], nil)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0
	}
	return mean
}
