package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"chordseq/internal/fileutil"
	"chordseq/internal/model"
	"chordseq/internal/params"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	mkdirFor(t, path)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTextList writes entries one per line.
func WriteTextList(t testing.TB, path string, entries ...string) {
	t.Helper()
	mkdirFor(t, path)
	if err := fileutil.WriteTextList(path, entries); err != nil {
		t.Fatalf("write list %s: %v", path, err)
	}
}

// WriteCheckpoint saves a parameter set.
func WriteCheckpoint(t testing.TB, path string, set params.Set) {
	t.Helper()
	mkdirFor(t, path)
	if err := params.Save(path, set); err != nil {
		t.Fatalf("save checkpoint %s: %v", path, err)
	}
}

// WriteDefinition saves a validator definition.
func WriteDefinition(t testing.TB, path string, def model.Definition) {
	t.Helper()
	mkdirFor(t, path)
	if err := def.Save(path); err != nil {
		t.Fatalf("save definition %s: %v", path, err)
	}
}

func mkdirFor(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
