package fileutil

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CopyFileAtomic copies src over dst without ever exposing a partial dst. The
// bytes land in a temporary file beside dst, are verified against the source
// by size and SHA256, synced, and renamed into place. The temporary file, and
// any directories created for dst, are removed on every failure path. It
// returns the hex SHA256 of the copy.
func CopyFileAtomic(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return "", fmt.Errorf("source %s is a directory", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	created, err := mkdirAllTracked(dir)
	committed := false
	defer func() {
		if !committed {
			removeCreated(created)
		}
	}()
	if err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}
	out, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := out.Name()
	defer func() {
		if !committed {
			_ = out.Close()
			_ = os.Remove(tmpName)
		}
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return "", err
	}
	if written != srcInfo.Size() {
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	dstSum, err := SHA256File(tmpName)
	if err != nil {
		return "", err
	}
	srcSum := hex.EncodeToString(srcHasher.Sum(nil))
	if srcSum != dstSum {
		return "", fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	if err := os.Chmod(tmpName, srcInfo.Mode().Perm()); err != nil {
		return "", fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return dstSum, nil
}

// mkdirAllTracked creates dir and its missing parents, returning the
// directories it created, outermost first.
func mkdirAllTracked(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil && !os.IsExist(err) {
			return created, err
		}
		created = append(created, missing[i])
	}
	return created, nil
}

// removeCreated removes directories made by mkdirAllTracked, innermost
// first. Directories that gained other entries are left alone.
func removeCreated(created []string) {
	for i := len(created) - 1; i >= 0; i-- {
		_ = os.Remove(created[i])
	}
}

// SHA256File returns the hex SHA256 digest of a file's contents.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadTextList reads one entry per line, skipping blank lines and lines
// starting with '#'.
func ReadTextList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// ReadPathList reads a text list of file paths. Relative entries are resolved
// against the list's own directory.
func ReadPathList(path string) ([]string, error) {
	entries, err := ReadTextList(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i, e := range entries {
		if !filepath.IsAbs(e) {
			entries[i] = filepath.Join(base, e)
		}
	}
	return entries, nil
}

// WriteTextList writes entries one per line.
func WriteTextList(path string, entries []string) error {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
