package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/decode"
	"chordseq/internal/faults"
	"chordseq/internal/model"
	"chordseq/internal/params"
	"chordseq/internal/stash"
	"chordseq/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Batch mode: yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, _, err = runCLI(t, []string{"--workers", "3", "config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "workers = 3")
	requireContains(t, out, env.cfg.Paths.StateDir)
}

func TestVocabCommandListsLabels(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"vocab", "--vocab", "25"}, env.configPath)
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	requireContains(t, out, "(25 labels)")
	requireContains(t, out, "Label")

	if _, _, err := runCLI(t, []string{"vocab", "--vocab", "24"}, env.configPath); err == nil {
		t.Fatal("expected unsupported vocabulary size to fail")
	}
}

func TestStashImportAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	doc := map[string]map[string]any{
		"song-a": {
			decode.FieldPosterior:  [][]float64{{0.9, 0.1}, {0.2, 0.8}},
			decode.FieldTimePoints: []float64{0, 0.5},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	src := filepath.Join(env.baseDir, "entities.json")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	dbPath := filepath.Join(env.baseDir, "stash.db")

	out, _, err := runCLI(t, []string{"stash", "import", src, dbPath}, "")
	if err != nil {
		t.Fatalf("stash import: %v", err)
	}
	requireContains(t, out, "Imported 1 entities")

	out, _, err = runCLI(t, []string{"stash", "ls", dbPath}, "")
	if err != nil {
		t.Fatalf("stash ls: %v", err)
	}
	requireContains(t, out, "song-a")
	requireContains(t, out, "posterior 2x2")
	requireContains(t, out, "time_points 1x2")

	if _, _, err := runCLI(t, []string{"stash", "ls", filepath.Join(env.baseDir, "missing.db")}, ""); err == nil {
		t.Fatal("expected ls of a missing stash to fail")
	}
}

func writePosteriorStash(t *testing.T, path string) {
	t.Helper()
	store := testsupport.OpenStash(t, path)
	testsupport.PutPosterior(t, store, "song-a", testsupport.PeakedPosterior(25, []int{0, 0, 1, 1}), testsupport.UniformGrid(4, 0.5))
	testsupport.PutPosterior(t, store, "song-b", testsupport.PeakedPosterior(25, []int{3, 3, 3, 3}), testsupport.UniformGrid(4, 0.5))
	if err := store.Close(); err != nil {
		t.Fatalf("close stash: %v", err)
	}
}

func TestDecodeWritesAnnotations(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "posteriors.db")
	writePosteriorStash(t, dbPath)
	outDir := filepath.Join(env.baseDir, "annotations")

	out, _, err := runCLI(t, []string{"decode", "--vocab", "25", "--penalty", "0", dbPath, outDir}, env.configPath)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	requireContains(t, out, "Wrote 2 annotations")

	data, err := os.ReadFile(filepath.Join(outDir, "song-a.json"))
	if err != nil {
		t.Fatalf("read annotation: %v", err)
	}
	var ann decode.Annotation
	if err := json.Unmarshal(data, &ann); err != nil {
		t.Fatalf("parse annotation: %v", err)
	}
	if len(ann.Intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %+v", ann.Intervals)
	}
	if ann.Intervals[0].Start != 0 || ann.Intervals[1].End != 1.5 {
		t.Fatalf("unexpected interval bounds %+v", ann.Intervals)
	}

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "decode")
	requireContains(t, out, "Succeeded")
}

func TestDecodeLabelOutsideVocabularyFails(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "wide.db")
	store := testsupport.OpenStash(t, dbPath)
	testsupport.PutPosterior(t, store, "wide", testsupport.PeakedPosterior(30, []int{27, 27, 27}), testsupport.UniformGrid(3, 1))
	if err := store.Close(); err != nil {
		t.Fatalf("close stash: %v", err)
	}

	_, _, err := runCLI(t, []string{"decode", "--vocab", "25", dbPath, filepath.Join(env.baseDir, "out")}, env.configPath)
	if !errors.Is(err, faults.ErrInvalidVocabulary) {
		t.Fatalf("expected invalid vocabulary, got %v", err)
	}
}

func TestSweepRequiresBatchMode(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "posteriors.db")
	writePosteriorStash(t, dbPath)

	_, _, err := runCLI(t, []string{"--batch=false", "sweep", "--vocab", "25", "--penalties", "0,1", dbPath, "song-a"}, env.configPath)
	if !errors.Is(err, faults.ErrConcurrencyPrecondition) {
		t.Fatalf("expected batch-mode error, got %v", err)
	}
}

func TestDecodeWithoutBatchModeHasNoSideEffects(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "posteriors.db")
	writePosteriorStash(t, dbPath)
	outDir := filepath.Join(env.baseDir, "annotations")

	_, _, err := runCLI(t, []string{"--batch=false", "decode", "--vocab", "25", dbPath, outDir}, env.configPath)
	if !errors.Is(err, faults.ErrConcurrencyPrecondition) {
		t.Fatalf("expected batch-mode error, got %v", err)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent, got %v", outDir, err)
	}
	out, _, err := runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestOutputFileNamesAreDistinctPerKey(t *testing.T) {
	keys := []string{"a/b", "a_b", "a\\b", "a%2Fb", "a b"}
	seen := map[string]string{}
	for _, key := range keys {
		for _, name := range []string{annotationFileName(key), sweepFileName(key, 0.5)} {
			if strings.ContainsAny(name, `/\\`) {
				t.Fatalf("%q maps to %q, which contains a separator", key, name)
			}
			if prev, dup := seen[name]; dup {
				t.Fatalf("keys %q and %q both map to %q", prev, key, name)
			}
			seen[name] = key
		}
	}
}

func TestDecodeKeepsSeparatorKeysApart(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "posteriors.db")
	store := testsupport.OpenStash(t, dbPath)
	testsupport.PutPosterior(t, store, "a/b", testsupport.PeakedPosterior(25, []int{0, 0, 0, 0}), testsupport.UniformGrid(4, 0.5))
	testsupport.PutPosterior(t, store, "a_b", testsupport.PeakedPosterior(25, []int{3, 3, 3, 3}), testsupport.UniformGrid(4, 0.5))
	if err := store.Close(); err != nil {
		t.Fatalf("close stash: %v", err)
	}
	outDir := filepath.Join(env.baseDir, "annotations")

	if _, _, err := runCLI(t, []string{"decode", "--vocab", "25", "--penalty", "0", dbPath, outDir}, env.configPath); err != nil {
		t.Fatalf("decode: %v", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if want := []string{"a%2Fb.json", "a_b.json"}; !slices.Equal(names, want) {
		t.Fatalf("output files = %v, want %v", names, want)
	}
	for name, label := range map[string]string{"a%2Fb.json": "C:maj", "a_b.json": "D#:maj"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var ann decode.Annotation
		if err := json.Unmarshal(data, &ann); err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if len(ann.Intervals) != 1 || ann.Intervals[0].Label != label {
			t.Fatalf("%s intervals = %+v, want one %s", name, ann.Intervals, label)
		}
	}
}

func TestSweepJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "posteriors.db")
	writePosteriorStash(t, dbPath)
	outDir := filepath.Join(env.baseDir, "sweep")

	out, _, err := runCLI(t, []string{"sweep", "--vocab", "25", "--penalties", "0:1:0.5", "--json", "--out", outDir, dbPath, "song-a"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var rows []sweepRowJSON
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("parse sweep json: %v\n%s", err, out)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 penalties, got %+v", rows)
	}
	for i, want := range []float64{0, 0.5, 1} {
		if rows[i].Penalty != want || rows[i].Failed {
			t.Fatalf("row %d = %+v", i, rows[i])
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "song-a_p0.5.json")); err != nil {
		t.Fatalf("expected sweep annotation: %v", err)
	}
}

// writeSelectionInputs lays out a validation stash, a softmax definition and
// three checkpoints: a wrong one, an unreadable one and the right one.
func writeSelectionInputs(t *testing.T, base string) (data, def, list, right string) {
	t.Helper()
	labels := []int{0, 1, 0, 1, 1, 0}
	data = filepath.Join(base, "validation.db")
	store := testsupport.OpenStash(t, data)
	testsupport.PutExample(t, store, "val-0", testsupport.OneHotFeatures(2, labels), labels)
	if err := store.Close(); err != nil {
		t.Fatalf("close stash: %v", err)
	}

	def = filepath.Join(base, "validator.toml")
	testsupport.WriteDefinition(t, def, model.Definition{
		Name: "classifier", Kind: model.KindSoftmax, FeatureDim: 2, Classes: 2,
	})

	ckpts := filepath.Join(base, "ckpts")
	testsupport.WriteCheckpoint(t, filepath.Join(ckpts, "epoch-1.bin"), params.Set{
		model.ParamWeights: mat.NewDense(2, 2, []float64{0, 3, 3, 0}),
		model.ParamBias:    mat.NewDense(1, 2, nil),
	})
	testsupport.WriteFile(t, filepath.Join(ckpts, "epoch-2.bin"), 64)
	right = filepath.Join(ckpts, "epoch-3.bin")
	testsupport.WriteCheckpoint(t, right, params.Set{
		model.ParamWeights: mat.NewDense(2, 2, []float64{3, 0, 0, 3}),
		model.ParamBias:    mat.NewDense(1, 2, nil),
	})

	list = filepath.Join(base, "candidates.txt")
	testsupport.WriteTextList(t, list, "ckpts/epoch-1.bin", "ckpts/epoch-2.bin", "ckpts/epoch-3.bin")
	return data, def, list, right
}

func TestSelectPromotesBestCheckpoint(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSelection(5, 4))
	data, def, list, right := writeSelectionInputs(t, env.baseDir)
	output := filepath.Join(env.baseDir, "best", "model.bin")

	out, _, err := runCLI(t, []string{"select", data, def, list, output}, env.configPath)
	if err != nil {
		t.Fatalf("select: %v\n%s", err, out)
	}
	requireContains(t, out, "Best: "+right)
	requireContains(t, out, "Load Failed")

	entries, err := os.ReadDir(filepath.Dir(output))
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "model.bin" {
		t.Fatalf("output dir should hold only model.bin, got %v", entries)
	}

	promoted, err := params.Load(output)
	if err != nil {
		t.Fatalf("load promoted checkpoint: %v", err)
	}
	if promoted[model.ParamWeights].At(0, 0) != 3 {
		t.Fatalf("promoted the wrong checkpoint: %v", mat.Formatted(promoted[model.ParamWeights]))
	}

	id := runIDFrom(t, out)
	out, _, err = runCLI(t, []string{"runs", "show", "--json", id[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	var run runJSON
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("parse run json: %v\n%s", err, out)
	}
	if run.Status != "succeeded" || run.BestPath != right || run.BestLoss == nil {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(run.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %+v", run.Candidates)
	}
	statuses := make([]string, len(run.Candidates))
	for i, c := range run.Candidates {
		statuses[i] = c.Status
	}
	if got := strings.Join(statuses, ","); got != "scored,load_failed,best" {
		t.Fatalf("candidate statuses = %s", got)
	}

	out, _, err = runCLI(t, []string{"runs", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("runs show table: %v", err)
	}
	requireContains(t, out, "epoch-3.bin")
	requireContains(t, out, "Candidates")

	out, _, err = runCLI(t, []string{"runs", "log", "-n", "0", id}, env.configPath)
	if err != nil {
		t.Fatalf("runs log: %v", err)
	}
	requireContains(t, out, "selection started")
	requireContains(t, out, "Run "+id[:8])
}

func TestSelectWithNoValidCheckpointFails(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSelection(2, 4))
	data, def, _, _ := writeSelectionInputs(t, env.baseDir)
	list := filepath.Join(env.baseDir, "broken.txt")
	testsupport.WriteTextList(t, list, "ckpts/epoch-2.bin")
	output := filepath.Join(env.baseDir, "best", "model.bin")

	_, _, err := runCLI(t, []string{"select", data, def, list, output}, env.configPath)
	if !errors.Is(err, faults.ErrNoValidCheckpoint) {
		t.Fatalf("expected no valid checkpoint, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("output should not exist, stat err = %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(env.baseDir, "best")); !os.IsNotExist(statErr) {
		t.Fatalf("output directory should not be created, stat err = %v", statErr)
	}

	out, _, err := runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "Failed")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "State directory")
	requireContains(t, out, "[OK]")

	out, _, err = runCLI(t, []string{"check", filepath.Join(env.baseDir, "missing.db")}, env.configPath)
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	requireContains(t, out, "[ERROR]")
}

func TestRunsShowUnknownID(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"runs", "show", "does-not-exist"}, env.configPath); err == nil {
		t.Fatal("expected unknown run id to fail")
	}
	out, _, err := runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestStashImportRejectsRaggedDocument(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "bad.json")
	if err := os.WriteFile(src, []byte(`{"k": {"posterior": [[1, 2], [3]]}}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	dbPath := filepath.Join(env.baseDir, "stash.db")
	if _, _, err := runCLI(t, []string{"stash", "import", src, dbPath}, ""); err == nil {
		t.Fatal("expected ragged document to be rejected")
	}
	store, err := stash.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open stash: %v", err)
	}
	defer store.Close()
	keys, err := store.Keys(context.Background())
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected nothing imported, got %v", keys)
	}
}
