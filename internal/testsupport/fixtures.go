package testsupport

import "gonum.org/v1/gonum/mat"

// PeakedPosterior puts 0.9 on path[t] in frame t and spreads the remainder
// evenly over the other labels.
func PeakedPosterior(labels int, path []int) *mat.Dense {
	m := mat.NewDense(len(path), labels, nil)
	rest := 0.1 / float64(labels-1)
	for t, j := range path {
		for k := 0; k < labels; k++ {
			m.Set(t, k, rest)
		}
		m.Set(t, j, 0.9)
	}
	return m
}

// UniformGrid returns frames time points spaced step seconds apart from 0.
func UniformGrid(frames int, step float64) []float64 {
	grid := make([]float64, frames)
	for i := range grid {
		grid[i] = float64(i) * step
	}
	return grid
}

// OneHotFeatures returns features whose row t is the unit vector for
// labels[t], so a linear classifier with identity weights predicts perfectly.
func OneHotFeatures(dim int, labels []int) *mat.Dense {
	m := mat.NewDense(len(labels), dim, nil)
	for t, j := range labels {
		m.Set(t, j, 1)
	}
	return m
}
