package config_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"chordseq/internal/config"
	"chordseq/internal/faults"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CHORDSEQ_STATE_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "chordseq")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.LedgerPath() != filepath.Join(wantState, "runs.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.Selection.NumBatches != 100 || cfg.Selection.BatchSize != 100 || cfg.Selection.Margin != 1.0 {
		t.Fatalf("unexpected selection defaults: %+v", cfg.Selection)
	}
	if !cfg.Decode.BatchMode || cfg.Decode.Vocabulary != 157 || cfg.Decode.Penalties != "0:5:0.5" {
		t.Fatalf("unexpected decode defaults: %+v", cfg.Decode)
	}
}

func TestLoadUsesStateDirEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	t.Setenv("CHORDSEQ_STATE_DIR", state)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StateDir != state {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, state)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "chordseq.toml")
	contents := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[decode]
penalty = 2.5
workers = 3
batch_mode = false
vocabulary = 25

[selection]
num_batches = 10
seed = 42

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %s to be loaded, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Decode.Penalty != 2.5 || cfg.Decode.Workers != 3 || cfg.Decode.BatchMode || cfg.Decode.Vocabulary != 25 {
		t.Fatalf("unexpected decode section: %+v", cfg.Decode)
	}
	if cfg.Selection.NumBatches != 10 || cfg.Selection.Seed != 42 || cfg.Selection.BatchSize != 100 {
		t.Fatalf("unexpected selection section: %+v", cfg.Selection)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.RunLogDir() != filepath.Join(dir, "logs", "runs") {
		t.Fatalf("unexpected run log dir: %q", cfg.RunLogDir())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[decode]\npenalty_typo = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "chordseq") {
		t.Fatalf("expected state dir to contain chordseq, got %q", cfg.Paths.StateDir)
	}
	defaults := config.Default()
	if cfg.Selection != defaults.Selection || cfg.Decode != defaults.Decode {
		t.Fatalf("sample diverges from defaults: %+v vs %+v", cfg, defaults)
	}

	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"negative penalty":  func(c *config.Config) { c.Decode.Penalty = -1 },
		"nan penalty":       func(c *config.Config) { c.Decode.Penalty = math.NaN() },
		"negative workers":  func(c *config.Config) { c.Decode.Workers = -2 },
		"odd vocabulary":    func(c *config.Config) { c.Decode.Vocabulary = 30 },
		"zero batches":      func(c *config.Config) { c.Selection.NumBatches = 0 },
		"zero batch size":   func(c *config.Config) { c.Selection.BatchSize = 0 },
		"negative margin":   func(c *config.Config) { c.Selection.Margin = -0.5 },
		"no copy attempts":  func(c *config.Config) { c.Selection.CopyAttempts = 0 },
		"bad log format":    func(c *config.Config) { c.Logging.Format = "xml" },
		"bad log level":     func(c *config.Config) { c.Logging.Level = "trace" },
		"negative retained": func(c *config.Config) { c.Logging.RetentionDays = -1 },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if !errors.Is(err, faults.ErrConfiguration) {
			t.Fatalf("%s: expected configuration marker, got %v", name, err)
		}
	}

	cfg := config.Default()
	cfg.Decode.Vocabulary = 0
	cfg.Decode.VocabularyFile = "/tmp/labels.txt"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("vocabulary file should bypass size check: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, want := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.RunLogDir()} {
		if info, err := os.Stat(want); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", want, err)
		}
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	t.Setenv("CHORDSEQ_STATE_DIR", "")
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(dir, "state")
	cfg.Decode.Penalty = 2.5
	cfg.Selection.Seed = 7

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(dir, "encoded.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected encoded config to exist")
	}
	if loaded.Decode.Penalty != 2.5 || loaded.Selection.Seed != 7 || loaded.Paths.StateDir != cfg.Paths.StateDir {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
