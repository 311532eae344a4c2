package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
	"chordseq/internal/model"
	"chordseq/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFileReadable(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x.bin")
	testsupport.WriteFile(t, f, 8)
	if r := CheckFileReadable("x", f); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	if r := CheckFileReadable("dir", dir); r.Passed {
		t.Fatal("expected failure for directory")
	}
	if r := CheckFileReadable("missing", filepath.Join(dir, "nope")); r.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestCheckValidationStash(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "val.db")
	store := testsupport.OpenStash(t, good)
	testsupport.PutExample(t, store, "track-1", testsupport.OneHotFeatures(3, []int{0, 1, 2}), []int{0, 1, 2})
	if r := CheckValidationStash(context.Background(), good); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}

	posteriorsOnly := filepath.Join(dir, "post.db")
	other := testsupport.OpenStash(t, posteriorsOnly)
	testsupport.PutPosterior(t, other, "track-1", testsupport.PeakedPosterior(2, []int{0, 1}), testsupport.UniformGrid(2, 0.5))
	if r := CheckValidationStash(context.Background(), posteriorsOnly); r.Passed {
		t.Fatal("expected failure for stash without validation examples")
	}

	garbage := filepath.Join(dir, "garbage.db")
	if err := os.WriteFile(garbage, []byte("not a database, just some text that is long enough"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckValidationStash(context.Background(), garbage); r.Passed {
		t.Fatal("expected failure for non-sqlite file")
	}
}

func TestCheckValidatorDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validator.toml")
	testsupport.WriteDefinition(t, path, model.Definition{
		Name: "classifier-V025", Kind: model.KindSoftmax, FeatureDim: 4, Classes: 25,
		Inputs: []string{model.InputFeatures, model.InputChordIdx},
	})
	r := CheckValidatorDefinition(path)
	if !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	if !strings.Contains(r.Detail, "25 classes") {
		t.Fatalf("unexpected detail %q", r.Detail)
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("name = \"x\"\nkind = \"tree\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckValidatorDefinition(bad); r.Passed {
		t.Fatal("expected failure for unknown kind")
	}
}

func TestCheckCandidateList(t *testing.T) {
	dir := t.TempDir()
	set := map[string]*mat.Dense{"W": mat.NewDense(1, 1, []float64{1})}
	testsupport.WriteCheckpoint(t, filepath.Join(dir, "a.bin"), set)

	partial := filepath.Join(dir, "partial.txt")
	testsupport.WriteTextList(t, partial, "a.bin", "missing.bin")
	r := CheckCandidateList(partial)
	if !r.Passed || !strings.Contains(r.Detail, "1 of 2") {
		t.Fatalf("expected partial pass, got %+v", r)
	}

	none := filepath.Join(dir, "none.txt")
	testsupport.WriteTextList(t, none, "missing.bin")
	if r := CheckCandidateList(none); r.Passed {
		t.Fatal("expected failure when no candidate is readable")
	}

	empty := filepath.Join(dir, "empty.txt")
	testsupport.WriteTextList(t, empty)
	if r := CheckCandidateList(empty); r.Passed {
		t.Fatal("expected failure for empty list")
	}
}

func TestCheckOutputTarget(t *testing.T) {
	dir := t.TempDir()
	if r := CheckOutputTarget(filepath.Join(dir, "new", "deeper", "best.bin")); !r.Passed {
		t.Fatalf("expected pass for creatable output, got %s", r.Detail)
	}
	if r := CheckOutputTarget(dir); r.Passed {
		t.Fatal("expected failure when output is a directory")
	}
	blocker := filepath.Join(dir, "blocker")
	testsupport.WriteFile(t, blocker, 1)
	if r := CheckOutputTarget(filepath.Join(blocker, "best.bin")); r.Passed {
		t.Fatal("expected failure when parent is a file")
	}
}

func TestRunAllAndErr(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)

	results := RunAll(context.Background(), cfg, Inputs{Output: filepath.Join(base, "out", "best.bin")})
	if len(results) != 2 {
		t.Fatalf("expected state dir and output checks, got %d", len(results))
	}
	if err := Err(results); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	results = RunAll(context.Background(), nil, Inputs{Validator: filepath.Join(base, "missing.toml")})
	if len(Failed(results)) != 1 {
		t.Fatalf("expected one failure, got %+v", results)
	}
	err := Err(results)
	if !errors.Is(err, faults.ErrValidation) || !strings.Contains(err.Error(), "Validator definition") {
		t.Fatalf("unexpected error %v", err)
	}
}
