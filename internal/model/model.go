package model

import (
	"context"
	"fmt"
	"slices"

	"chordseq/internal/params"
)

// Input and output names shared by validators and samplers.
const (
	InputFeatures = "features"
	InputChordIdx = "chord_idx"
	InputMargin   = "margin"

	OutputTotalLoss = "total_loss"
)

// Batch is one held-out mini-batch: input name to value. Features are a
// *mat.Dense (rows = observations), chord_idx a []int, margin a float64.
type Batch map[string]any

// Outputs are the named scalar results of one evaluation.
type Outputs map[string]float64

// Validator scores batches under a loaded parameter set.
type Validator interface {
	Name() string
	Inputs() []string
	SetParams(params.Set) error
	Evaluate(ctx context.Context, batch Batch) (Outputs, error)
}

// Declares reports whether v lists input among its inputs.
func Declares(v Validator, input string) bool {
	return slices.Contains(v.Inputs(), input)
}

// New builds the validator a definition describes.
func New(def Definition) (Validator, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	switch def.Kind {
	case KindSoftmax:
		return &softmax{linear: linear{def: def}}, nil
	case KindMargin:
		return &hinge{linear: linear{def: def}}, nil
	case KindChroma, KindTonnetz:
		r, err := newRegression(def)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("validator kind %q is not supported", def.Kind)
	}
}
