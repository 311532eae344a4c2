package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"chordseq/internal/decode"
	"chordseq/internal/faults"
	"chordseq/internal/logging"
	"chordseq/internal/vocab"
)

// Options controls the pool.
type Options struct {
	// Workers bounds concurrent decodes; 0 uses every CPU.
	Workers int
	// BatchMode must be set for any fan-out; without it both entry points fail
	// with faults.ErrConcurrencyPrecondition.
	BatchMode bool
	Decode    decode.Options
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

// Require fails with faults.ErrConcurrencyPrecondition unless batch mode is
// set. Callers check it before any side effect of a fan-out.
func (o Options) Require(operation string) error {
	if !o.BatchMode {
		return faults.Wrap(faults.ErrConcurrencyPrecondition, "sweep", operation, "batch mode is disabled", nil)
	}
	return nil
}

// DecodeSweep decodes entity once per penalty. The result slice is parallel to
// penalties; entries whose decode failed are nil.
func DecodeSweep(ctx context.Context, entity decode.Entity, penalties []float64, v *vocab.Vocabulary, opts Options) ([]*decode.Annotation, error) {
	if err := opts.Require("decode_sweep"); err != nil {
		return nil, err
	}
	logger := opts.logger()
	started := time.Now()
	results := make([]*decode.Annotation, len(penalties))
	errs := runIndexed(ctx, len(penalties), opts.Workers, func(_ context.Context, i int) error {
		ann, err := decode.Posterior(entity, penalties[i], v, opts.Decode)
		if err != nil {
			return err
		}
		results[i] = ann
		return nil
	})
	if pos, err := firstError(errs); err != nil {
		logger.Warn("penalty sweep incomplete",
			logging.String(logging.FieldEventType, "sweep_task_failed"),
			logging.String(logging.FieldErrorHint, "inspect the failing penalty value and the posterior shape"),
			logging.String(logging.FieldImpact, "annotations for failed penalties are missing"),
			logging.Penalty(penalties[pos]),
			logging.Int("failed", countErrors(errs)),
			logging.Error(err),
		)
		return results, fmt.Errorf("decode penalty %s: %w", strconv.FormatFloat(penalties[pos], 'g', -1, 64), err)
	}
	logger.Debug("penalty sweep complete",
		logging.Int("penalties", len(penalties)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return results, nil
}

// DecodeBatch decodes every example under one penalty. Keys are dispatched in
// sorted order; failed keys are absent from the returned map.
func DecodeBatch(ctx context.Context, examples map[string]decode.Entity, penalty float64, v *vocab.Vocabulary, opts Options) (map[string]*decode.Annotation, error) {
	if err := opts.Require("decode_batch"); err != nil {
		return nil, err
	}
	logger := opts.logger()
	keys := SortedKeys(examples)
	annotations := make([]*decode.Annotation, len(keys))
	errs := runIndexed(ctx, len(keys), opts.Workers, func(_ context.Context, i int) error {
		ann, err := decode.Posterior(examples[keys[i]], penalty, v, opts.Decode)
		if err != nil {
			return err
		}
		annotations[i] = ann
		return nil
	})

	results := make(map[string]*decode.Annotation, len(keys))
	for i, key := range keys {
		if annotations[i] != nil {
			results[key] = annotations[i]
		}
	}
	if pos, err := firstError(errs); err != nil {
		logger.Warn("batch decode incomplete",
			logging.String(logging.FieldEventType, "batch_task_failed"),
			logging.String(logging.FieldErrorHint, "re-import the failing example or check its time grid"),
			logging.String(logging.FieldImpact, "annotations for failed examples are missing"),
			logging.Example(keys[pos]),
			logging.Int("failed", countErrors(errs)),
			logging.Error(err),
		)
		return results, fmt.Errorf("decode %s: %w", keys[pos], err)
	}
	logger.Debug("batch decode complete",
		logging.Int("examples", len(keys)),
		logging.Penalty(penalty),
	)
	return results, nil
}

// SortedKeys returns the map's keys in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
