package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
	"chordseq/internal/params"
)

// Parameter slot names of the linear layers.
const (
	ParamWeights = "W"
	ParamBias    = "b"
)

// linear holds the shared affine layer: scores = features·W + b.
type linear struct {
	def     Definition
	weights *mat.Dense
	bias    []float64
}

func (l *linear) Name() string { return l.def.Name }

func (l *linear) Inputs() []string { return append([]string(nil), l.def.Inputs...) }

// SetParams loads W (feature_dim × outputs) and b (1 × outputs) into the slots.
func (l *linear) SetParams(set params.Set) error {
	w, err := set.Get(ParamWeights)
	if err != nil {
		return faults.Wrap(faults.ErrCheckpointLoad, "model", "set params", l.def.Name, err)
	}
	b, err := set.Get(ParamBias)
	if err != nil {
		return faults.Wrap(faults.ErrCheckpointLoad, "model", "set params", l.def.Name, err)
	}
	width := l.def.OutputDim()
	if r, c := w.Dims(); r != l.def.FeatureDim || c != width {
		return faults.Wrap(faults.ErrCheckpointLoad, "model", "set params",
			fmt.Sprintf("W is %dx%d, want %dx%d", r, c, l.def.FeatureDim, width), nil)
	}
	if r, c := b.Dims(); r*c != width || (r != 1 && c != 1) {
		return faults.Wrap(faults.ErrCheckpointLoad, "model", "set params",
			fmt.Sprintf("b is %dx%d, want 1x%d", r, c, width), nil)
	}
	l.weights = mat.DenseCopyOf(w)
	if r, _ := b.Dims(); r == 1 {
		l.bias = mat.Row(nil, 0, b)
	} else {
		l.bias = mat.Col(nil, 0, b)
	}
	return nil
}

// scores validates the batch and returns (observations × outputs) scores and
// the target class per observation.
func (l *linear) scores(ctx context.Context, batch Batch) (*mat.Dense, []int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if l.weights == nil {
		return nil, nil, faults.Wrap(faults.ErrEvaluation, "model", "evaluate", "parameters not loaded", nil)
	}
	features, ok := batch[InputFeatures].(*mat.Dense)
	if !ok || features == nil {
		return nil, nil, faults.Wrap(faults.ErrEvaluation, "model", "evaluate", "batch is missing features", nil)
	}
	targets, ok := batch[InputChordIdx].([]int)
	if !ok {
		return nil, nil, faults.Wrap(faults.ErrEvaluation, "model", "evaluate", "batch is missing chord_idx", nil)
	}
	rows, cols := features.Dims()
	if cols != l.def.FeatureDim {
		return nil, nil, faults.Wrap(faults.ErrShapeMismatch, "model", "evaluate",
			fmt.Sprintf("features have %d columns, want %d", cols, l.def.FeatureDim), nil)
	}
	if rows != len(targets) || rows == 0 {
		return nil, nil, faults.Wrap(faults.ErrShapeMismatch, "model", "evaluate",
			fmt.Sprintf("%d feature rows for %d targets", rows, len(targets)), nil)
	}
	for i, y := range targets {
		if y < 0 || y >= l.def.Classes {
			return nil, nil, faults.Wrap(faults.ErrEvaluation, "model", "evaluate",
				fmt.Sprintf("target %d at row %d outside %d classes", y, i, l.def.Classes), nil)
		}
	}

	var out mat.Dense
	out.Mul(features, l.weights)
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), l.bias)
	}
	return &out, targets, nil
}

// softmax scores batches by mean negative log-likelihood of the target class.
type softmax struct {
	linear
}

func (s *softmax) Evaluate(ctx context.Context, batch Batch) (Outputs, error) {
	scores, targets, err := s.scores(ctx, batch)
	if err != nil {
		return nil, err
	}
	var total float64
	for i, y := range targets {
		row := scores.RawRowView(i)
		total += floats.LogSumExp(row) - row[y]
	}
	return Outputs{OutputTotalLoss: total / float64(len(targets))}, nil
}

// hinge scores batches by the mean multiclass hinge loss
// max(0, margin - score[y] + max_{j≠y} score[j]).
type hinge struct {
	linear
}

func (h *hinge) Evaluate(ctx context.Context, batch Batch) (Outputs, error) {
	margin, ok := batch[InputMargin].(float64)
	if !ok {
		return nil, faults.Wrap(faults.ErrEvaluation, "model", "evaluate", "batch is missing margin", nil)
	}
	scores, targets, err := h.scores(ctx, batch)
	if err != nil {
		return nil, err
	}
	var total float64
	for i, y := range targets {
		row := scores.RawRowView(i)
		rival := math.Inf(-1)
		for j, v := range row {
			if j != y && v > rival {
				rival = v
			}
		}
		total += math.Max(0, margin-row[y]+rival)
	}
	return Outputs{OutputTotalLoss: total / float64(len(targets))}, nil
}
