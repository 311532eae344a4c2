package selection

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"

	"chordseq/internal/faults"
	"chordseq/internal/model"
)

// DefaultNumBatches is the number of held-out batches averaged per candidate.
const DefaultNumBatches = 100

// DataSource yields held-out batches.
type DataSource interface {
	NextBatch(ctx context.Context) (model.Batch, error)
}

// Rewinder is implemented by sources that can restart their batch sequence.
type Rewinder interface {
	Rewind()
}

// AverageLoss draws numBatches batches, evaluates total_loss on each and
// divides the sum by numBatches. The margin input is supplied only when the
// validator declares it. Evaluation problems, including a non-finite average,
// carry faults.ErrEvaluation; source failures and cancellation do not.
func AverageLoss(ctx context.Context, source DataSource, validator model.Validator, numBatches int, margin float64) (float64, error) {
	if numBatches <= 0 {
		return 0, faults.Wrap(faults.ErrValidation, "selection", "average loss", "batch count must be positive", nil)
	}
	withMargin := model.Declares(validator, model.InputMargin)

	var sum float64
	for n := 0; n < numBatches; n++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := source.NextBatch(ctx)
		if err != nil {
			return 0, fmt.Errorf("next batch %d: %w", n, err)
		}
		if withMargin {
			batch = maps.Clone(batch)
			batch[model.InputMargin] = margin
		}
		out, err := validator.Evaluate(ctx, batch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, err
			}
			return 0, faults.Wrap(faults.ErrEvaluation, "selection", "average loss", fmt.Sprintf("batch %d", n), err)
		}
		loss, ok := out[model.OutputTotalLoss]
		if !ok {
			return 0, faults.Wrap(faults.ErrEvaluation, "selection", "average loss", "validator produced no total_loss", nil)
		}
		sum += loss
	}
	avg := sum / float64(numBatches)
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, faults.Wrap(faults.ErrEvaluation, "selection", "average loss", fmt.Sprintf("average loss is %v", avg), nil)
	}
	return avg, nil
}
