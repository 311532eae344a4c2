package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
)

// Stash field names for validation examples.
const (
	FieldFeatures = "features"
	FieldChordIdx = "chord_idx"
)

// Fields is implemented by keyed stores that expose named matrices.
type Fields interface {
	Field(name string) (*mat.Dense, bool)
}

// Example is one held-out track: frame features and the reference chord
// index of every frame.
type Example struct {
	Features *mat.Dense
	ChordIdx []int
}

// ExampleFrom reads the features and chord_idx fields.
func ExampleFrom(f Fields) (Example, error) {
	features, ok := f.Field(FieldFeatures)
	if !ok {
		return Example{}, faults.Wrap(faults.ErrValidation, "model", "example", "missing features field", nil)
	}
	idx, ok := f.Field(FieldChordIdx)
	if !ok {
		return Example{}, faults.Wrap(faults.ErrValidation, "model", "example", "missing chord_idx field", nil)
	}
	frames, _ := features.Dims()
	r, c := idx.Dims()
	if r*c != frames || (r != 1 && c != 1) {
		return Example{}, faults.Wrap(faults.ErrShapeMismatch, "model", "example",
			fmt.Sprintf("chord_idx is %dx%d for %d frames", r, c, frames), nil)
	}
	labels := make([]int, 0, frames)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := idx.At(i, j)
			if v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
				return Example{}, faults.Wrap(faults.ErrValidation, "model", "example",
					fmt.Sprintf("chord_idx value %v is not a class index", v), nil)
			}
			labels = append(labels, int(v))
		}
	}
	return Example{Features: features, ChordIdx: labels}, nil
}

// Sampler draws fixed-size batches of random frames from a set of examples.
// The same seed always yields the same batch sequence; Rewind restarts it.
type Sampler struct {
	examples  []Example
	offsets   []int
	total     int
	dim       int
	batchSize int
	seed      uint64
	rng       *rand.Rand
}

// NewSampler validates the examples and prepares a seeded sampler.
func NewSampler(examples []Example, batchSize int, seed uint64) (*Sampler, error) {
	if batchSize <= 0 {
		return nil, faults.Wrap(faults.ErrValidation, "model", "sampler", "batch size must be positive", nil)
	}
	if len(examples) == 0 {
		return nil, faults.Wrap(faults.ErrValidation, "model", "sampler", "no validation examples", nil)
	}
	s := &Sampler{examples: examples, batchSize: batchSize, seed: seed, offsets: make([]int, len(examples))}
	for i, ex := range examples {
		if ex.Features == nil || ex.Features.IsEmpty() {
			return nil, faults.Wrap(faults.ErrShapeMismatch, "model", "sampler", fmt.Sprintf("example %d has no frames", i), nil)
		}
		frames, dim := ex.Features.Dims()
		if frames != len(ex.ChordIdx) {
			return nil, faults.Wrap(faults.ErrShapeMismatch, "model", "sampler",
				fmt.Sprintf("example %d has %d frames and %d labels", i, frames, len(ex.ChordIdx)), nil)
		}
		if i == 0 {
			s.dim = dim
		} else if dim != s.dim {
			return nil, faults.Wrap(faults.ErrShapeMismatch, "model", "sampler",
				fmt.Sprintf("example %d has feature dim %d, want %d", i, dim, s.dim), nil)
		}
		s.offsets[i] = s.total
		s.total += frames
	}
	s.Rewind()
	return s, nil
}

// FeatureDim is the column count of every example's features.
func (s *Sampler) FeatureDim() int { return s.dim }

// Frames is the number of frames available for sampling.
func (s *Sampler) Frames() int { return s.total }

// Rewind restarts the batch sequence from the seed.
func (s *Sampler) Rewind() {
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
}

// NextBatch draws batchSize frames uniformly, with replacement, across all
// examples.
func (s *Sampler) NextBatch(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	features := mat.NewDense(s.batchSize, s.dim, nil)
	targets := make([]int, s.batchSize)
	for row := 0; row < s.batchSize; row++ {
		global := s.rng.IntN(s.total)
		ex := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > global }) - 1
		frame := global - s.offsets[ex]
		features.SetRow(row, s.examples[ex].Features.RawRowView(frame))
		targets[row] = s.examples[ex].ChordIdx[frame]
	}
	return Batch{InputFeatures: features, InputChordIdx: targets}, nil
}
