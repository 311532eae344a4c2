package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"chordseq/internal/faults"
	"chordseq/internal/logging"
	"chordseq/internal/model"
	"chordseq/internal/params"
)

// Candidate statuses.
const (
	StatusScored     = "scored"
	StatusBest       = "best"
	StatusLoadFailed = "load_failed"
	StatusEvalFailed = "eval_failed"
)

// Loader reads a checkpoint's parameter set.
type Loader func(path string) (params.Set, error)

// Candidate is the outcome for one checkpoint.
type Candidate struct {
	Position int
	Path     string
	Status   string
	Loss     float64
	Err      error
}

// Result is the outcome of a selection run.
type Result struct {
	Best       string
	BestLoss   float64
	Candidates []Candidate
}

// Options tunes a selection run.
type Options struct {
	// NumBatches defaults to DefaultNumBatches.
	NumBatches int
	Margin     float64
	// Repeatable rewinds sources implementing Rewinder before every
	// candidate so all candidates see the same batches.
	Repeatable bool
	// Loader defaults to params.Load.
	Loader Loader
	Logger *slog.Logger
	// OnCandidate, when set, observes each candidate as soon as it is decided.
	OnCandidate func(Candidate)
}

func (o Options) withDefaults() Options {
	if o.NumBatches <= 0 {
		o.NumBatches = DefaultNumBatches
	}
	if o.Loader == nil {
		o.Loader = params.Load
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// SelectBest scores every checkpoint in order and returns the one with the
// lowest average validation loss. It fails with faults.ErrNoValidCheckpoint
// when no candidate could be scored.
func SelectBest(ctx context.Context, checkpoints []string, validator model.Validator, source DataSource, opts Options) (Result, error) {
	opts = opts.withDefaults()
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "selection"))
	rewinder, canRewind := source.(Rewinder)

	result := Result{BestLoss: math.Inf(1), Candidates: make([]Candidate, 0, len(checkpoints))}
	bestPos := -1
	started := time.Now()

	for pos, path := range checkpoints {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.Repeatable && canRewind {
			rewinder.Rewind()
		}
		cand := scoreCandidate(ctx, pos, path, validator, source, opts)
		if cand.Err != nil && !faults.Recoverable(cand.Err) {
			return result, cand.Err
		}

		switch {
		case cand.Err != nil:
			logging.WarnWithContext(logger, "checkpoint skipped", "candidate_"+cand.Status,
				logging.Checkpoint(path),
				logging.Int("position", pos),
				logging.Error(cand.Err),
				logging.String(logging.FieldErrorHint, hintFor(cand.Status)),
				logging.String(logging.FieldImpact, "candidate excluded from selection"),
			)
		case cand.Loss < result.BestLoss:
			result.Best, result.BestLoss, bestPos = path, cand.Loss, pos
			attrs := logging.DecisionAttrs("running_best", "replaced", "lower average loss")
			attrs = append(attrs,
				logging.Checkpoint(path),
				logging.Loss(cand.Loss),
			)
			logger.Info("new best "+strconv.FormatFloat(cand.Loss, 'f', 4, 64)+" @ "+filepath.Base(path), logging.Args(attrs...)...)
		default:
			reason := "higher average loss"
			if cand.Loss == result.BestLoss {
				reason = "tie keeps earlier candidate"
			}
			attrs := logging.DecisionAttrs("running_best", "kept", reason)
			attrs = append(attrs,
				logging.Checkpoint(path),
				logging.Loss(cand.Loss),
				logging.Float64("best_loss", result.BestLoss),
			)
			logger.Debug("candidate scored", logging.Args(attrs...)...)
		}
		result.Candidates = append(result.Candidates, cand)
		if opts.OnCandidate != nil {
			opts.OnCandidate(cand)
		}
	}

	if bestPos < 0 {
		return result, faults.Wrap(faults.ErrNoValidCheckpoint, "selection", "select best",
			fmt.Sprintf("none of %d candidates could be scored", len(checkpoints)), nil)
	}
	result.Candidates[bestPos].Status = StatusBest
	logger.Info("selection complete",
		logging.String(logging.FieldCheckpoint, result.Best),
		logging.Float64("best_loss", result.BestLoss),
		logging.Int("candidates", len(checkpoints)),
		logging.Int("skipped", skipped(result.Candidates)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// Select runs SelectBest and promotes the winner to output.
func Select(ctx context.Context, checkpoints []string, validator model.Validator, source DataSource, output string, opts Options, promote PromoteOptions) (Result, error) {
	result, err := SelectBest(ctx, checkpoints, validator, source, opts)
	if err != nil {
		return result, err
	}
	if promote.Logger == nil {
		promote.Logger = opts.Logger
	}
	if _, err := Promote(ctx, result.Best, output, promote); err != nil {
		return result, err
	}
	return result, nil
}

func scoreCandidate(ctx context.Context, pos int, path string, validator model.Validator, source DataSource, opts Options) Candidate {
	cand := Candidate{Position: pos, Path: path, Loss: math.NaN()}
	set, err := opts.Loader(path)
	if err == nil {
		err = validator.SetParams(set)
	}
	if err != nil {
		if !errors.Is(err, faults.ErrCheckpointLoad) {
			err = faults.Wrap(faults.ErrCheckpointLoad, "selection", "load", filepath.Base(path), err)
		}
		cand.Status, cand.Err = StatusLoadFailed, err
		return cand
	}
	loss, err := AverageLoss(ctx, source, validator, opts.NumBatches, opts.Margin)
	if err != nil {
		cand.Status, cand.Err = StatusEvalFailed, err
		return cand
	}
	cand.Status, cand.Loss = StatusScored, loss
	return cand
}

func hintFor(status string) string {
	if status == StatusLoadFailed {
		return "the file is unreadable or not a parameter set for this validator; re-export it"
	}
	return "inspect the validation data and the checkpoint's parameter values"
}

func skipped(cands []Candidate) int {
	n := 0
	for _, c := range cands {
		if c.Err != nil {
			n++
		}
	}
	return n
}
