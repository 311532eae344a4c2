package decode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
)

// Field names used when entities are stored in a stash.
const (
	FieldPosterior  = "posterior"
	FieldTimePoints = "time_points"
)

// Entity is one example's posterior matrix (frames × labels) and the centre
// time, in seconds, of every frame.
type Entity struct {
	Posterior  *mat.Dense
	TimePoints []float64
}

// Fields is implemented by keyed stores that expose named matrices.
type Fields interface {
	Field(name string) (*mat.Dense, bool)
}

// EntityFrom assembles an Entity from the posterior and time_points fields.
// Time points may be stored as either a row or a column vector.
func EntityFrom(f Fields) (Entity, error) {
	posterior, ok := f.Field(FieldPosterior)
	if !ok {
		return Entity{}, faults.Wrap(faults.ErrValidation, "decode", "entity", "missing posterior field", nil)
	}
	grid, ok := f.Field(FieldTimePoints)
	if !ok {
		return Entity{}, faults.Wrap(faults.ErrValidation, "decode", "entity", "missing time_points field", nil)
	}
	r, c := grid.Dims()
	if r != 1 && c != 1 {
		return Entity{}, faults.Wrap(faults.ErrShapeMismatch, "decode", "entity", fmt.Sprintf("time_points must be a vector, got %dx%d", r, c), nil)
	}
	points := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			points = append(points, grid.At(i, j))
		}
	}
	return Entity{Posterior: posterior, TimePoints: points}, nil
}

// Frames returns the number of frames in the posterior.
func (e Entity) Frames() int {
	if e.Posterior == nil {
		return 0
	}
	r, _ := e.Posterior.Dims()
	return r
}

// Validate checks that the posterior and time grid agree and that the grid is
// finite and non-decreasing.
func (e Entity) Validate() error {
	if e.Posterior == nil || e.Posterior.IsEmpty() {
		return faults.Wrap(faults.ErrShapeMismatch, "decode", "validate", "posterior has no frames", nil)
	}
	frames, _ := e.Posterior.Dims()
	if frames != len(e.TimePoints) {
		return faults.Wrap(faults.ErrShapeMismatch, "decode", "validate", fmt.Sprintf("posterior has %d frames but time grid has %d points", frames, len(e.TimePoints)), nil)
	}
	for i, t := range e.TimePoints {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return faults.Wrap(faults.ErrValidation, "decode", "validate", fmt.Sprintf("time point %d is not finite", i), nil)
		}
		if i > 0 && t < e.TimePoints[i-1] {
			return faults.Wrap(faults.ErrValidation, "decode", "validate", fmt.Sprintf("time grid decreases at point %d", i), nil)
		}
	}
	return nil
}
