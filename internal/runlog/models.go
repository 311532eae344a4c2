package runlog

import "time"

// Kind identifies what a run did.
type Kind string

const (
	KindSelect Kind = "select"
	KindDecode Kind = "decode"
	KindSweep  Kind = "sweep"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID         string
	Kind       Kind
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time
	BestPath   string
	// BestLoss is NaN when no winner was recorded.
	BestLoss float64
	Output   string
	Error    string
}

// Duration is the run's wall time, zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CandidateEntry records one scored or skipped checkpoint.
type CandidateEntry struct {
	Position int
	Path     string
	Status   string
	// Loss is NaN for skipped candidates.
	Loss  float64
	Error string
}

// DecodeEntry records one decoded example or sweep penalty.
type DecodeEntry struct {
	Key            string
	Penalty        float64
	Intervals      int
	MeanConfidence float64
	Error          string
}

// Outcome closes a run.
type Outcome struct {
	Status   Status
	BestPath string
	BestLoss float64
	Output   string
	Error    string
}

// Detail is a run together with its per-candidate and per-decode rows.
type Detail struct {
	Run        Run
	Candidates []CandidateEntry
	Decodes    []DecodeEntry
}
