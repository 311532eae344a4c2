package preflight

import (
	"context"
	"fmt"
	"strings"

	"chordseq/internal/config"
	"chordseq/internal/faults"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Inputs names the files a selection run consumes and produces.
type Inputs struct {
	Data       string
	Validator  string
	Candidates string
	Output     string
}

// RunAll executes every applicable check for the given config and inputs.
// Empty input paths are skipped.
func RunAll(ctx context.Context, cfg *config.Config, in Inputs) []Result {
	var results []Result

	if cfg != nil {
		results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	}
	if in.Data != "" {
		results = append(results, CheckValidationStash(ctx, in.Data))
	}
	if in.Validator != "" {
		results = append(results, CheckValidatorDefinition(in.Validator))
	}
	if in.Candidates != "" {
		results = append(results, CheckCandidateList(in.Candidates))
	}
	if in.Output != "" {
		results = append(results, CheckOutputTarget(in.Output))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarises failed results as one validation error, nil when all passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return faults.Wrap(faults.ErrValidation, "preflight", "run", strings.Join(parts, "; "), nil)
}
