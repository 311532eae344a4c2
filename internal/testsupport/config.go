package testsupport

import (
	"path/filepath"
	"testing"

	"chordseq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The directories exist when it returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBatchMode toggles the decode batch-mode flag.
func WithBatchMode(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decode.BatchMode = enabled
	}
}

// WithWorkers sets the decode worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Decode.Workers = n
	}
}

// WithSelection overrides the validation batch count and size.
func WithSelection(numBatches, batchSize int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Selection.NumBatches = numBatches
		b.cfg.Selection.BatchSize = batchSize
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
