package runlog

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

// fixedClock returns successive times one minute apart.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func TestSelectionRunLifecycle(t *testing.T) {
	ledger := openLedger(t)
	ledger.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	id, err := ledger.Start(ctx, KindSelect)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	entries := []CandidateEntry{
		{Position: 0, Path: "a.bin", Status: "scored", Loss: 0.5},
		{Position: 1, Path: "b.bin", Status: "load_failed", Loss: math.NaN(), Error: "checkpoint load failed"},
		{Position: 2, Path: "c.bin", Status: "best", Loss: 0.25},
	}
	for _, e := range entries {
		if err := ledger.RecordCandidate(ctx, id, e); err != nil {
			t.Fatalf("RecordCandidate failed: %v", err)
		}
	}
	if err := ledger.Finish(ctx, id, Outcome{Status: StatusSucceeded, BestPath: "c.bin", BestLoss: 0.25, Output: "best.bin"}); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	detail, err := ledger.Get(ctx, id[:8])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	run := detail.Run
	if run.ID != id || run.Kind != KindSelect || run.Status != StatusSucceeded {
		t.Fatalf("unexpected run: %#v", run)
	}
	if run.BestPath != "c.bin" || run.BestLoss != 0.25 || run.Output != "best.bin" {
		t.Fatalf("unexpected outcome fields: %#v", run)
	}
	if run.Duration() != time.Minute {
		t.Fatalf("expected one minute duration, got %v", run.Duration())
	}
	if len(detail.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(detail.Candidates))
	}
	skipped := detail.Candidates[1]
	if !math.IsNaN(skipped.Loss) || skipped.Error == "" || skipped.Status != "load_failed" {
		t.Fatalf("unexpected skipped candidate: %#v", skipped)
	}
}

func TestFailedRunHasNoBestLoss(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()
	id, err := ledger.Start(ctx, KindSelect)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := ledger.Finish(ctx, id, Outcome{Status: StatusFailed, Error: "no valid checkpoint"}); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	detail, err := ledger.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !math.IsNaN(detail.Run.BestLoss) {
		t.Fatalf("expected NaN best loss, got %v", detail.Run.BestLoss)
	}
	if detail.Run.Error != "no valid checkpoint" {
		t.Fatalf("unexpected error text %q", detail.Run.Error)
	}
}

func TestDecodeRowsAndListing(t *testing.T) {
	ledger := openLedger(t)
	ledger.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := ledger.Start(ctx, KindDecode)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := ledger.RecordDecodes(ctx, first, []DecodeEntry{
		{Key: "track-b", Penalty: 1, Intervals: 4, MeanConfidence: -0.3},
		{Key: "track-a", Penalty: 1, Intervals: 7, MeanConfidence: -0.1},
	}); err != nil {
		t.Fatalf("RecordDecodes failed: %v", err)
	}
	second, err := ledger.Start(ctx, KindSweep)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	runs, err := ledger.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("expected newest first, got %#v", runs)
	}
	if runs[0].Status != StatusRunning || runs[0].FinishedAt != nil {
		t.Fatalf("expected unfinished run, got %#v", runs[0])
	}

	limited, err := ledger.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 run, got %d", len(limited))
	}

	detail, err := ledger.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(detail.Decodes) != 2 || detail.Decodes[0].Key != "track-a" || detail.Decodes[0].Intervals != 7 {
		t.Fatalf("unexpected decodes: %#v", detail.Decodes)
	}
}

func TestGetErrors(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()
	if _, err := ledger.Get(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := ledger.Get(ctx, " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
	if err := ledger.Finish(ctx, "missing", Outcome{Status: StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Finish, got %v", err)
	}

	for _, id := range []string{"abc-1", "abc-2"} {
		if _, err := ledger.db.ExecContext(ctx,
			"INSERT INTO runs (id, kind, status, started_at) VALUES (?, 'sweep', 'running', ?)",
			id, formatTime(time.Now()),
		); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}
	if _, err := ledger.Get(ctx, "abc"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	if detail, err := ledger.Get(ctx, "abc-2"); err != nil || detail.Run.ID != "abc-2" {
		t.Fatalf("expected exact match, got %v, %v", detail, err)
	}
}
