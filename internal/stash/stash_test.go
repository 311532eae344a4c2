package stash_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"chordseq/internal/decode"
	"chordseq/internal/model"
	"chordseq/internal/stash"
)

func openStore(t *testing.T) *stash.Store {
	t.Helper()
	store, err := stash.Open(context.Background(), filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	posterior := mat.NewDense(3, 2, []float64{0.9, 0.1, 0.2, 0.8, 0.5, 0.5})
	grid := mat.NewDense(1, 3, []float64{0, 0.5, 1})
	if err := store.Put(ctx, "track-1", map[string]*mat.Dense{
		decode.FieldPosterior:  posterior,
		decode.FieldTimePoints: grid,
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec, err := store.Get(ctx, "track-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff([]string{decode.FieldPosterior, decode.FieldTimePoints}, rec.Names()); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}
	got, _ := rec.Field(decode.FieldPosterior)
	if !mat.Equal(got, posterior) {
		t.Fatalf("posterior mismatch: %v", mat.Formatted(got))
	}

	entity, err := decode.EntityFrom(rec)
	if err != nil {
		t.Fatalf("EntityFrom failed: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0.5, 1}, entity.TimePoints); diff != "" {
		t.Fatalf("time points mismatch (-want +got):\n%s", diff)
	}
}

func TestPutReplacesEntity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first := map[string]*mat.Dense{"a": mat.NewDense(1, 1, []float64{1}), "b": mat.NewDense(1, 1, []float64{2})}
	if err := store.Put(ctx, "k", first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "k", map[string]*mat.Dense{"a": mat.NewDense(1, 1, []float64{3})}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	rec, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := rec.Field("b"); ok {
		t.Fatal("stale field b survived replacement")
	}
	a, _ := rec.Field("a")
	if a.At(0, 0) != 3 {
		t.Fatalf("expected replaced value 3, got %v", a.At(0, 0))
	}
}

func TestGetUnknownKey(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, stash.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRejectsEmptyInput(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, "", map[string]*mat.Dense{"a": mat.NewDense(1, 1, nil)}); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.Put(ctx, "k", nil); err == nil {
		t.Fatal("expected error for entity without fields")
	}
	if err := store.Put(ctx, "k", map[string]*mat.Dense{"a": nil}); err == nil {
		t.Fatal("expected error for nil field")
	}
}

func TestImportJSONListAndDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	doc := `{
		"val-2": {"features": [[1, 0], [0, 1]], "chord_idx": [0, 1]},
		"val-1": {"features": [[0.5, 0.5]], "chord_idx": [3]}
	}`
	keys, err := store.ImportJSON(ctx, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if diff := cmp.Diff([]string{"val-1", "val-2"}, keys); diff != "" {
		t.Fatalf("imported keys mismatch (-want +got):\n%s", diff)
	}

	rec, err := store.Get(ctx, "val-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	example, err := model.ExampleFrom(rec)
	if err != nil {
		t.Fatalf("ExampleFrom failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1}, example.ChordIdx); diff != "" {
		t.Fatalf("chord_idx mismatch (-want +got):\n%s", diff)
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []stash.Summary{
		{Key: "val-1", Fields: []stash.FieldShape{{Name: "chord_idx", Rows: 1, Cols: 1}, {Name: "features", Rows: 1, Cols: 2}}},
		{Key: "val-2", Fields: []stash.FieldShape{{Name: "chord_idx", Rows: 1, Cols: 2}, {Name: "features", Rows: 2, Cols: 2}}},
	}
	if diff := cmp.Diff(want, summaries); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	if err := store.Delete(ctx, "val-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	remaining, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if diff := cmp.Diff([]string{"val-2"}, remaining); diff != "" {
		t.Fatalf("keys after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestImportJSONRejectsMalformedDocuments(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cases := map[string]string{
		"not json":   `{`,
		"empty":      `{}`,
		"ragged":     `{"k": {"posterior": [[1, 2], [3]]}}`,
		"scalar":     `{"k": {"posterior": 4}}`,
		"empty rows": `{"k": {"posterior": []}}`,
	}
	for name, doc := range cases {
		if _, err := store.ImportJSON(ctx, strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("malformed imports must not store anything, found %v", keys)
	}
}
