package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"chordseq/internal/config"
	"chordseq/internal/faults"
	"chordseq/internal/fileutil"
	"chordseq/internal/logging"
	"chordseq/internal/model"
	"chordseq/internal/preflight"
	"chordseq/internal/runlog"
	"chordseq/internal/selection"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var (
		numBatches int
		batchSize  int
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "select DATA VALIDATOR TEXTLIST OUTPUT",
		Short: "Pick the checkpoint with the lowest validation loss and copy it to OUTPUT",
		Long: `Scores every checkpoint listed in TEXTLIST on held-out batches drawn from the
DATA stash, using the validator described by the VALIDATOR definition, and
copies the checkpoint with the lowest average loss to OUTPUT. Unreadable or
unevaluable checkpoints are skipped with a warning.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("num-batches") {
				cfg.Selection.NumBatches = numBatches
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.Selection.BatchSize = batchSize
			}
			if cmd.Flags().Changed("seed") {
				cfg.Selection.Seed = seed
			}
			in, err := selectInputs(args)
			if err != nil {
				return err
			}
			return runSelect(cmd, ctx, cfg, in)
		},
	}

	cmd.Flags().IntVar(&numBatches, "num-batches", 0, "Held-out batches averaged per checkpoint")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Frames per held-out batch")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Sampler seed")
	return cmd
}

func selectInputs(args []string) (preflight.Inputs, error) {
	expanded := make([]string, len(args))
	for i, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return preflight.Inputs{}, err
		}
		expanded[i] = path
	}
	return preflight.Inputs{Data: expanded[0], Validator: expanded[1], Candidates: expanded[2], Output: expanded[3]}, nil
}

func runSelect(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, in preflight.Inputs) error {
	if cfg.Selection.NumBatches <= 0 || cfg.Selection.BatchSize <= 0 {
		return faults.Wrap(faults.ErrConfiguration, "select", "options", "num-batches and batch-size must be positive", nil)
	}
	if err := preflight.Err(preflight.RunAll(cmd.Context(), cfg, in)); err != nil {
		return err
	}

	session, err := ctx.startRun(cmd.Context(), runlog.KindSelect)
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger(session.logger, "cli")
	logger.Info("selection started",
		logging.String("data", in.Data),
		logging.String("validator", in.Validator),
		logging.String("candidates", in.Candidates),
		logging.String("output", in.Output),
		logging.Int("num_batches", cfg.Selection.NumBatches),
		logging.Int("batch_size", cfg.Selection.BatchSize),
	)

	result, err := selectAndPromote(session, cfg, in)
	outcome := runlog.Outcome{Output: in.Output, BestPath: result.Best, BestLoss: result.BestLoss}
	if err != nil {
		outcome.BestPath = ""
	}
	if len(result.Candidates) > 0 {
		renderCandidates(cmd, result)
	}
	if err == nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Best: %s (loss %s)\n", result.Best, formatLoss(result.BestLoss))
		fmt.Fprintf(out, "Copied to: %s\n", in.Output)
		fmt.Fprintf(out, "Run: %s\n", session.id)
	}
	return session.finish(outcome, err)
}

func selectAndPromote(session *runSession, cfg *config.Config, in preflight.Inputs) (selection.Result, error) {
	ctx := session.ctx
	def, err := model.LoadDefinition(in.Validator)
	if err != nil {
		return selection.Result{}, err
	}
	validator, err := model.New(def)
	if err != nil {
		return selection.Result{}, err
	}

	store, err := openStash(ctx, in.Data)
	if err != nil {
		return selection.Result{}, err
	}
	defer store.Close()
	examples, err := loadExamples(ctx, store)
	if err != nil {
		return selection.Result{}, err
	}
	sampler, err := model.NewSampler(examples, cfg.Selection.BatchSize, cfg.Selection.Seed)
	if err != nil {
		return selection.Result{}, err
	}
	if sampler.FeatureDim() != def.FeatureDim {
		return selection.Result{}, faults.Wrap(faults.ErrShapeMismatch, "select", "validation data",
			"features have "+strconv.Itoa(sampler.FeatureDim())+" columns, validator expects "+strconv.Itoa(def.FeatureDim), nil)
	}

	candidates, err := fileutil.ReadPathList(in.Candidates)
	if err != nil {
		return selection.Result{}, fmt.Errorf("read candidate list: %w", err)
	}

	record := func(c selection.Candidate) {
		entry := runlog.CandidateEntry{Position: c.Position, Path: c.Path, Status: c.Status, Loss: c.Loss}
		if c.Err != nil {
			entry.Error = c.Err.Error()
		}
		if err := session.ledger.RecordCandidate(ctx, session.id, entry); err != nil {
			session.logger.Warn("failed to record candidate",
				logging.String(logging.FieldEventType, "ledger_write_failed"),
				logging.String(logging.FieldErrorHint, "check the state directory is writable"),
				logging.String(logging.FieldImpact, "run history is incomplete"),
				logging.Checkpoint(c.Path),
				logging.Error(err),
			)
		}
	}

	result, err := selection.Select(ctx, candidates, validator, sampler, in.Output,
		selection.Options{
			NumBatches:  cfg.Selection.NumBatches,
			Margin:      cfg.Selection.Margin,
			Repeatable:  cfg.Selection.Repeatable,
			Logger:      session.logger,
			OnCandidate: record,
		},
		selection.PromoteOptions{
			Attempts: cfg.Selection.CopyAttempts,
			LockDir:  cfg.LockDir(),
			Logger:   session.logger,
		},
	)
	for _, c := range result.Candidates {
		if c.Status == selection.StatusBest {
			record(c)
		}
	}
	return result, err
}

func renderCandidates(cmd *cobra.Command, result selection.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		status := candidateKind(c.Status).paint(statusLabel(c.Status), colorize)
		rows = append(rows, []string{
			strconv.Itoa(c.Position + 1),
			filepath.Base(c.Path),
			status,
			formatLoss(c.Loss),
			faults.Kind(c.Err),
		})
	}
	fmt.Fprintln(out, tableSpec{
		Title:   "Candidates",
		Headers: []string{"#", "Checkpoint", "Status", "Loss", "Reason"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	}.render())
}
