package testsupport

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/decode"
	"chordseq/internal/model"
	"chordseq/internal/stash"
)

// OpenStash opens (creating) a stash at path and closes it on cleanup.
func OpenStash(t testing.TB, path string) *stash.Store {
	t.Helper()
	store, err := stash.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open stash: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// PutPosterior stores a posterior entity under key.
func PutPosterior(t testing.TB, store *stash.Store, key string, posterior *mat.Dense, grid []float64) {
	t.Helper()
	err := store.Put(context.Background(), key, map[string]*mat.Dense{
		decode.FieldPosterior:  posterior,
		decode.FieldTimePoints: mat.NewDense(1, len(grid), append([]float64(nil), grid...)),
	})
	if err != nil {
		t.Fatalf("put posterior %s: %v", key, err)
	}
}

// PutExample stores a validation example under key.
func PutExample(t testing.TB, store *stash.Store, key string, features *mat.Dense, labels []int) {
	t.Helper()
	idx := mat.NewDense(1, len(labels), nil)
	for i, l := range labels {
		idx.Set(0, i, float64(l))
	}
	err := store.Put(context.Background(), key, map[string]*mat.Dense{
		model.FieldFeatures: features,
		model.FieldChordIdx: idx,
	})
	if err != nil {
		t.Fatalf("put example %s: %v", key, err)
	}
}
