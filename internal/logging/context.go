package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one selection or decode run.
	FieldRunID = "run_id"
	// FieldStage names the pipeline stage (select, decode, sweep).
	FieldStage = "stage"
	// FieldExample is the stash key of the example being decoded.
	FieldExample = "example"
	// FieldPenalty is the self-transition penalty a decode used.
	FieldPenalty = "penalty"
	// FieldCheckpoint is the path of a checkpoint candidate.
	FieldCheckpoint = "checkpoint"
	// FieldLoss is an averaged validation loss.
	FieldLoss = "loss"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType tags decision log lines.
	FieldDecisionType = "decision_type"
)

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
	exampleKey
)

// WithRunID attaches a run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withValue(ctx, runIDKey, runID)
}

// WithStage attaches a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// WithExample attaches an example key to the context.
func WithExample(ctx context.Context, key string) context.Context {
	return withValue(ctx, exampleKey, key)
}

// RunIDFromContext returns the run identifier, if any.
func RunIDFromContext(ctx context.Context) (string, bool) { return stringValue(ctx, runIDKey) }

// StageFromContext returns the stage name, if any.
func StageFromContext(ctx context.Context) (string, bool) { return stringValue(ctx, stageKey) }

// ExampleFromContext returns the example key, if any.
func ExampleFromContext(ctx context.Context) (string, bool) { return stringValue(ctx, exampleKey) }

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if key, ok := ExampleFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldExample, key))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
