package params

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
)

const (
	magic      = "CSQP"
	version    = uint16(1)
	headerSize = len(magic) + 2 + 4
	maxName    = 1<<16 - 1
	// maxFileSize caps how much of a candidate file is read.
	maxFileSize = 1 << 30
)

var errCorrupt = errors.New("corrupt parameter file")

// Set maps parameter names to matrices.
type Set map[string]*mat.Dense

// Names returns the parameter names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the named matrix or an error naming the missing slot.
func (s Set) Get(name string) (*mat.Dense, error) {
	m, ok := s[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("parameter %q missing", name)
	}
	return m, nil
}

// Encode writes s in checkpoint format.
func Encode(w io.Writer, s Set) error {
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, version)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
	for _, name := range s.Names() {
		if len(name) == 0 || len(name) > maxName {
			return fmt.Errorf("parameter name %q: invalid length", name)
		}
		m := s[name]
		if m == nil || m.IsEmpty() {
			return fmt.Errorf("parameter %q is empty", name)
		}
		data, err := m.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode parameter %q: %w", name, err)
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(data)))
		buf.Write(data)
	}
	_ = binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes()))
	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads a checkpoint-format parameter set.
func Decode(r io.Reader) (Set, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxFileSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", errCorrupt, maxFileSize)
	}
	if len(raw) < headerSize+4 {
		return nil, fmt.Errorf("%w: %d bytes is too short", errCorrupt, len(raw))
	}
	body, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	if got, want := crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(trailer); got != want {
		return nil, fmt.Errorf("%w: checksum %08x, want %08x", errCorrupt, got, want)
	}
	if string(body[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", errCorrupt)
	}
	rd := bytes.NewReader(body[len(magic):])
	var ver uint16
	var count uint32
	_ = binary.Read(rd, binary.LittleEndian, &ver)
	_ = binary.Read(rd, binary.LittleEndian, &count)
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", errCorrupt, ver)
	}

	set := make(Set, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(rd, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d header: %v", errCorrupt, i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(rd, name); err != nil {
			return nil, fmt.Errorf("%w: entry %d name: %v", errCorrupt, i, err)
		}
		var size uint64
		if err := binary.Read(rd, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: entry %q size: %v", errCorrupt, name, err)
		}
		if size > uint64(rd.Len()) {
			return nil, fmt.Errorf("%w: entry %q truncated", errCorrupt, name)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(rd, data); err != nil {
			return nil, fmt.Errorf("%w: entry %q data: %v", errCorrupt, name, err)
		}
		var m mat.Dense
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("%w: entry %q matrix: %v", errCorrupt, name, err)
		}
		if _, dup := set[string(name)]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", errCorrupt, name)
		}
		set[string(name)] = &m
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", errCorrupt, rd.Len())
	}
	return set, nil
}

// Load opens and decodes the checkpoint at path. Every failure carries
// faults.ErrCheckpointLoad. The file handle is released before returning.
func Load(path string) (Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrCheckpointLoad, "params", "load", filepath.Base(path), err)
	}
	defer file.Close()
	set, err := Decode(file)
	if err != nil {
		return nil, faults.Wrap(faults.ErrCheckpointLoad, "params", "load", filepath.Base(path), err)
	}
	return set, nil
}

// Save writes s to path via a temporary file in the same directory.
func Save(path string, s Set) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	tmpName := tmp.Name()
	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
