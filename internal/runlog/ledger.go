package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"chordseq/internal/dbutil"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrNotFound is returned when no run matches an ID prefix.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when an ID prefix matches several runs.
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Ledger is the SQLite run ledger.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or connects to the ledger at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := dbutil.Open(ctx, path, dbutil.Schema{Name: "run ledger", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Start records a new running run and returns its ID.
func (l *Ledger) Start(ctx context.Context, kind Kind) (string, error) {
	id := uuid.NewString()
	if _, err := dbutil.Exec(ctx, l.db,
		"INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)",
		id, string(kind), string(StatusRunning), formatTime(l.now()),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordCandidate stores one candidate of a selection run.
func (l *Ledger) RecordCandidate(ctx context.Context, runID string, c CandidateEntry) error {
	if _, err := dbutil.Exec(ctx, l.db,
		`INSERT INTO candidates (run_id, position, path, status, loss, error) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_id, position) DO UPDATE SET status = excluded.status, loss = excluded.loss, error = excluded.error`,
		runID, c.Position, c.Path, c.Status, nullableFloat(c.Loss), nullableString(c.Error),
	); err != nil {
		return fmt.Errorf("record candidate %d: %w", c.Position, err)
	}
	return nil
}

// RecordDecodes stores decode rows in one transaction.
func (l *Ledger) RecordDecodes(ctx context.Context, runID string, entries []DecodeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return dbutil.InTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO decodes (run_id, key, penalty, intervals, mean_confidence, error) VALUES (?, ?, ?, ?, ?, ?)`,
				runID, e.Key, e.Penalty, e.Intervals, e.MeanConfidence, nullableString(e.Error),
			); err != nil {
				return fmt.Errorf("record decode %s@%g: %w", e.Key, e.Penalty, err)
			}
		}
		return nil
	})
}

// Finish closes a run with its outcome.
func (l *Ledger) Finish(ctx context.Context, runID string, o Outcome) error {
	var bestLoss any
	if o.BestPath != "" {
		bestLoss = nullableFloat(o.BestLoss)
	}
	res, err := dbutil.Exec(ctx, l.db,
		`UPDATE runs SET status = ?, finished_at = ?, best_path = ?, best_loss = ?, output = ?, error = ? WHERE id = ?`,
		string(o.Status), formatTime(l.now()), nullableString(o.BestPath), bestLoss,
		nullableString(o.Output), nullableString(o.Error), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

const runColumns = "id, kind, status, started_at, finished_at, best_path, best_loss, output, error"

// List returns the most recent runs first; limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get loads the run whose ID starts with prefix, with its candidate and
// decode rows.
func (l *Ledger) Get(ctx context.Context, prefix string) (*Detail, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}

	detail := &Detail{Run: matches[0]}
	if detail.Candidates, err = l.candidates(ctx, detail.Run.ID); err != nil {
		return nil, err
	}
	if detail.Decodes, err = l.decodes(ctx, detail.Run.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (l *Ledger) candidates(ctx context.Context, runID string) ([]CandidateEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT position, path, status, loss, error FROM candidates WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	var out []CandidateEntry
	for rows.Next() {
		var (
			c      CandidateEntry
			loss   sql.NullFloat64
			errMsg sql.NullString
		)
		if err := rows.Scan(&c.Position, &c.Path, &c.Status, &loss, &errMsg); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Loss = floatOrNaN(loss)
		c.Error = errMsg.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (l *Ledger) decodes(ctx context.Context, runID string) ([]DecodeEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT key, penalty, intervals, mean_confidence, error FROM decodes WHERE run_id = ? ORDER BY key, penalty", runID)
	if err != nil {
		return nil, fmt.Errorf("list decodes: %w", err)
	}
	defer rows.Close()
	var out []DecodeEntry
	for rows.Next() {
		var (
			e      DecodeEntry
			errMsg sql.NullString
		)
		if err := rows.Scan(&e.Key, &e.Penalty, &e.Intervals, &e.MeanConfidence, &errMsg); err != nil {
			return nil, fmt.Errorf("scan decode: %w", err)
		}
		e.Error = errMsg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		kind        string
		status      string
		startedRaw  string
		finishedRaw sql.NullString
		bestPath    sql.NullString
		bestLoss    sql.NullFloat64
		output      sql.NullString
		errMsg      sql.NullString
	)
	if err := scanner.Scan(&run.ID, &kind, &status, &startedRaw, &finishedRaw, &bestPath, &bestLoss, &output, &errMsg); err != nil {
		return Run{}, err
	}
	run.Kind = Kind(kind)
	run.Status = Status(status)
	run.BestPath = bestPath.String
	run.BestLoss = floatOrNaN(bestLoss)
	run.Output = output.String
	run.Error = errMsg.String
	if started, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return value
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
