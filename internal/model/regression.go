package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
	"chordseq/internal/vocab"
)

// regression scores batches by the mean squared error between the affine
// output and the chord template (chroma or tonnetz) of each target class.
type regression struct {
	linear
	targets *mat.Dense
}

func newRegression(def Definition) (*regression, error) {
	v, err := def.Vocabulary()
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "model", "definition", def.Name, err)
	}
	if v.Size() != def.Classes {
		return nil, faults.Wrap(faults.ErrConfiguration, "model", "definition",
			fmt.Sprintf("vocabulary %s has %d labels, want %d", v.Name(), v.Size(), def.Classes), nil)
	}
	spell := vocab.Chroma
	if def.Kind == KindTonnetz {
		spell = vocab.Tonnetz
	}
	rows, err := v.Templates(spell)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "model", "definition", def.Name, err)
	}
	targets := mat.NewDense(len(rows), def.OutputDim(), nil)
	for i, row := range rows {
		targets.SetRow(i, row)
	}
	return &regression{linear: linear{def: def}, targets: targets}, nil
}

func (r *regression) Evaluate(ctx context.Context, batch Batch) (Outputs, error) {
	out, classes, err := r.scores(ctx, batch)
	if err != nil {
		return nil, err
	}
	var total float64
	for i, y := range classes {
		row := out.RawRowView(i)
		floats.Sub(row, r.targets.RawRowView(y))
		total += floats.Dot(row, row)
	}
	return Outputs{OutputTotalLoss: total / float64(len(classes))}, nil
}
