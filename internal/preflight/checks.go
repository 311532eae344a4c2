package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"chordseq/internal/fileutil"
	"chordseq/internal/model"
	"chordseq/internal/stash"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that path is a readable regular file.
func CheckFileReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckValidationStash verifies the stash opens and holds at least one
// validation example with features and chord_idx fields.
func CheckValidationStash(ctx context.Context, path string) Result {
	const name = "Validation data"
	if r := CheckFileReadable(name, path); !r.Passed {
		return r
	}
	store, err := stash.Open(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	summaries, err := store.List(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	usable := 0
	for _, s := range summaries {
		var hasFeatures, hasLabels bool
		for _, f := range s.Fields {
			switch f.Name {
			case model.FieldFeatures:
				hasFeatures = true
			case model.FieldChordIdx:
				hasLabels = true
			}
		}
		if hasFeatures && hasLabels {
			usable++
		}
	}
	if usable == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no examples with %s and %s)", path, model.FieldFeatures, model.FieldChordIdx)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d of %d examples usable)", path, usable, len(summaries))}
}

// CheckValidatorDefinition verifies the definition parses and is complete.
func CheckValidatorDefinition(path string) Result {
	const name = "Validator definition"
	def, err := model.LoadDefinition(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s, %d classes)", def.Name, def.Kind, def.Classes)}
}

// CheckCandidateList verifies the list names at least one readable
// checkpoint. Unreadable entries are reported but do not fail the check;
// selection skips them.
func CheckCandidateList(path string) Result {
	const name = "Candidate list"
	entries, err := fileutil.ReadPathList(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(entries) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no candidates listed)", path)}
	}
	readable := 0
	for _, entry := range entries {
		if CheckFileReadable(entry, entry).Passed {
			readable++
		}
	}
	if readable == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: none of %d candidates readable)", path, len(entries))}
	}
	if readable < len(entries) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d of %d readable; the rest will be skipped)", path, readable, len(entries))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d candidates)", path, len(entries))}
}

// CheckOutputTarget verifies the output is not a directory and that its
// nearest existing ancestor directory is writable.
func CheckOutputTarget(path string) Result {
	const name = "Output"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	dir := filepath.Dir(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, dir)}
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent directory)", path)}
		}
		dir = parent
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s not writable: %v)", path, dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}
