package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"chordseq/internal/config"
	"chordseq/internal/logging"
	"chordseq/internal/runlog"
	"chordseq/internal/vocab"
)

type globalFlags struct {
	config   string
	logLevel string

	workers    int
	workersSet bool
	batch      bool
	batchSet   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = level
		}
		if c.flags.workersSet {
			cfg.Decode.Workers = c.flags.workers
		}
		if c.flags.batchSet {
			cfg.Decode.BatchMode = c.flags.batch
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runSession ties one ledger run to its diagnostic log.
type runSession struct {
	id     string
	ctx    context.Context
	logger *slog.Logger
	ledger *runlog.Ledger
	closer io.Closer
}

// startRun opens the ledger, records a running run, and tees the base logger
// into the run's own log file.
func (c *commandContext) startRun(parent context.Context, kind runlog.Kind) (*runSession, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	base, baseCloser, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	ledger, err := runlog.Open(parent, cfg.LedgerPath())
	if err != nil {
		baseCloser.Close()
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	id, err := ledger.Start(parent, kind)
	if err != nil {
		ledger.Close()
		baseCloser.Close()
		return nil, err
	}
	logger, runCloser, err := logging.OpenRunLog(base, cfg.RunLogDir(), id, cfg.Logging.Format, cfg.Logging.RetentionDays)
	if err != nil {
		ledger.Close()
		baseCloser.Close()
		return nil, err
	}
	ctx := logging.WithRunID(parent, id)
	ctx = logging.WithStage(ctx, string(kind))
	return &runSession{
		id:     id,
		ctx:    ctx,
		logger: logger,
		ledger: ledger,
		closer: closerFunc(func() error {
			return errors.Join(runCloser.Close(), baseCloser.Close())
		}),
	}, nil
}

// finish closes the run in the ledger and releases its resources. runErr is
// the command's outcome; it is returned unchanged so callers can
// `return s.finish(...)`.
func (s *runSession) finish(outcome runlog.Outcome, runErr error) error {
	if runErr != nil {
		outcome.Status = runlog.StatusFailed
		outcome.Error = runErr.Error()
	} else if outcome.Status == "" {
		outcome.Status = runlog.StatusSucceeded
	}
	// Record the outcome even when the run was cancelled.
	if err := s.ledger.Finish(context.WithoutCancel(s.ctx), s.id, outcome); err != nil {
		s.logger.Warn("failed to record run outcome",
			logging.String(logging.FieldEventType, "ledger_write_failed"),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
			logging.String(logging.FieldImpact, "run history is incomplete"),
			logging.Error(err),
		)
	}
	_ = s.ledger.Close()
	_ = s.closer.Close()
	return runErr
}

// recordDecodes stores decode rows, logging ledger failures.
func (s *runSession) recordDecodes(entries []runlog.DecodeEntry) {
	if err := s.ledger.RecordDecodes(s.ctx, s.id, entries); err != nil {
		logging.WarnWithContext(s.logger, "failed to record decodes", "ledger_write_failed",
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
			logging.String(logging.FieldImpact, "run history is incomplete"),
			logging.Error(err),
		)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// resolveVocabulary picks, in order: the --vocab-file flag, the --vocab flag,
// the configured vocabulary file, the configured vocabulary size.
func resolveVocabulary(cfg *config.Config, size int, file string) (*vocab.Vocabulary, error) {
	if file = strings.TrimSpace(file); file != "" {
		path, err := config.ExpandPath(file)
		if err != nil {
			return nil, err
		}
		return vocab.LoadTextList(path)
	}
	if size > 0 {
		return vocab.New(size)
	}
	if cfg.Decode.VocabularyFile != "" {
		return vocab.LoadTextList(cfg.Decode.VocabularyFile)
	}
	return vocab.New(cfg.Decode.Vocabulary)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
