// Package logging assembles structured slog loggers and formatting helpers used
// across chordseq commands.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so selection and decode code can
// tag log lines with run IDs, stages, example keys and penalties. Each
// selection run also gets its own diagnostic log file, opened at run start and
// closed at run end, which OpenRunLog tees alongside the main logger.
//
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
