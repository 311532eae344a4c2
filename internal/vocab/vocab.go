package vocab

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"chordseq/internal/faults"
)

// NoChord is the label assigned to frames without a harmonic chord.
const NoChord = "N"

// Roots lists the twelve pitch-class names in index order.
var Roots = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Qualities lists chord qualities in index order. The 25- and 61-class
// vocabularies use the first 2 and 5 entries respectively.
var Qualities = []string{
	"maj", "min", "maj7", "min7", "7",
	"maj6", "min6", "dim", "aug", "sus4", "sus2", "hdim7", "dim7",
}

var flatAliases = map[string]string{
	"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#",
}

var graphNamePattern = regexp.MustCompile(`V(\d{3})$`)

// Vocabulary is an immutable bidirectional index/label mapping.
type Vocabulary struct {
	name   string
	labels []string
	index  map[string]int
}

// New returns one of the built-in chord vocabularies by class count.
func New(size int) (*Vocabulary, error) {
	var qualities int
	switch size {
	case 25:
		qualities = 2
	case 61:
		qualities = 5
	case 157:
		qualities = len(Qualities)
	default:
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "new", fmt.Sprintf("unsupported vocabulary size %d (want 25, 61 or 157)", size), nil)
	}
	labels := make([]string, 0, size)
	for q := 0; q < qualities; q++ {
		for _, root := range Roots {
			labels = append(labels, root+":"+Qualities[q])
		}
	}
	labels = append(labels, NoChord)
	return FromLabels(fmt.Sprintf("V%03d", size), labels)
}

// FromLabels builds a vocabulary from an ordered label list. Labels must be
// non-empty and unique.
func FromLabels(name string, labels []string) (*Vocabulary, error) {
	if len(labels) == 0 {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "build", "no labels", nil)
	}
	v := &Vocabulary{
		name:   strings.TrimSpace(name),
		labels: make([]string, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "build", fmt.Sprintf("empty label at index %d", i), nil)
		}
		if prev, dup := v.index[label]; dup {
			return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "build", fmt.Sprintf("label %q repeated at indices %d and %d", label, prev, i), nil)
		}
		v.labels[i] = label
		v.index[label] = i
	}
	return v, nil
}

// LoadTextList reads a vocabulary from a file with one label per line. Blank
// lines and lines starting with '#' are ignored.
func LoadTextList(path string) (*Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return FromLabels(path, labels)
}

// ForGraphName resolves the vocabulary implied by a classifier graph name such
// as "classifier-V157".
func ForGraphName(name string) (*Vocabulary, error) {
	match := graphNamePattern.FindStringSubmatch(strings.TrimSpace(name))
	if match == nil {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "graph name", fmt.Sprintf("%q does not name a vocabulary", name), nil)
	}
	size, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "graph name", name, err)
	}
	return New(size)
}

// Name identifies the vocabulary (e.g. "V157" or the source file path).
func (v *Vocabulary) Name() string { return v.name }

// Size returns the number of labels.
func (v *Vocabulary) Size() int { return len(v.labels) }

// Labels returns a copy of the labels in index order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Label resolves a single index.
func (v *Vocabulary) Label(index int) (string, error) {
	if index < 0 || index >= len(v.labels) {
		return "", faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "index to label", fmt.Sprintf("index %d outside [0, %d)", index, len(v.labels)), nil)
	}
	return v.labels[index], nil
}

// IndexToLabel resolves every index; it fails on the first out-of-range index.
func (v *Vocabulary) IndexToLabel(indices []int) ([]string, error) {
	labels := make([]string, len(indices))
	for i, idx := range indices {
		label, err := v.Label(idx)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

// LabelToIndex resolves chord labels back to indices. Flat roots are accepted
// as their sharp equivalents.
func (v *Vocabulary) LabelToIndex(labels []string) ([]int, error) {
	indices := make([]int, len(labels))
	for i, label := range labels {
		idx, ok := v.index[canonical(label)]
		if !ok {
			return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "label to index", fmt.Sprintf("unknown label %q", label), nil)
		}
		indices[i] = idx
	}
	return indices, nil
}

func canonical(label string) string {
	label = strings.TrimSpace(label)
	root, quality, found := strings.Cut(label, ":")
	if !found {
		return label
	}
	if sharp, ok := flatAliases[root]; ok {
		root = sharp
	}
	return root + ":" + quality
}
