package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShapeMismatch           = errors.New("shape mismatch")
	ErrInvalidVocabulary       = errors.New("invalid vocabulary")
	ErrNoValidCheckpoint       = errors.New("no valid checkpoint")
	ErrConcurrencyPrecondition = errors.New("batch mode required")
	ErrCheckpointLoad          = errors.New("checkpoint load failed")
	ErrEvaluation              = errors.New("evaluation failed")
	ErrValidation              = errors.New("validation error")
	ErrConfiguration           = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker. The marker should be one of the exported sentinel
// errors above; a nil marker falls back to ErrValidation.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether err only disqualifies a single checkpoint
// candidate. Load and evaluation failures are skipped; everything else aborts
// the selection run.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCheckpointLoad) || errors.Is(err, ErrEvaluation)
}

// Kind returns a short label for the first marker err carries, used in run
// ledgers and status tables.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCheckpointLoad):
		return "load_failed"
	case errors.Is(err, ErrEvaluation):
		return "eval_failed"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrInvalidVocabulary):
		return "invalid_vocabulary"
	case errors.Is(err, ErrNoValidCheckpoint):
		return "no_valid_checkpoint"
	case errors.Is(err, ErrConcurrencyPrecondition):
		return "batch_mode_required"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
