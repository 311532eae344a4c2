package vocab

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"chordseq/internal/faults"
)

// Template widths.
const (
	ChromaDim  = 12
	TonnetzDim = 6
)

// intervals are semitones above the root, per quality.
var intervals = map[string][]int{
	"maj":   {0, 4, 7},
	"min":   {0, 3, 7},
	"maj7":  {0, 4, 7, 11},
	"min7":  {0, 3, 7, 10},
	"7":     {0, 4, 7, 10},
	"maj6":  {0, 4, 7, 9},
	"min6":  {0, 3, 7, 9},
	"dim":   {0, 3, 6},
	"aug":   {0, 4, 8},
	"sus4":  {0, 5, 7},
	"sus2":  {0, 2, 7},
	"hdim7": {0, 3, 6, 10},
	"dim7":  {0, 3, 6, 9},
}

// Tonnetz circles: fifths, minor thirds, major thirds.
var tonnetzCircles = []struct {
	step   float64
	radius float64
}{
	{7 * math.Pi / 6, 1},
	{3 * math.Pi / 2, 1},
	{2 * math.Pi / 3, 0.5},
}

// PitchClasses returns the sorted pitch classes sounding in a chord label.
// The no-chord label has none.
func PitchClasses(label string) ([]int, error) {
	label = canonical(label)
	if label == NoChord {
		return nil, nil
	}
	rootName, quality, found := strings.Cut(label, ":")
	if !found {
		quality = "maj"
	}
	root := slices.Index(Roots, rootName)
	steps, ok := intervals[quality]
	if root < 0 || !ok {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "vocab", "pitch classes", fmt.Sprintf("cannot spell %q", label), nil)
	}
	pcs := make([]int, len(steps))
	for i, step := range steps {
		pcs[i] = (root + step) % 12
	}
	slices.Sort(pcs)
	return pcs, nil
}

// Chroma returns the binary 12-bin pitch-class template of a chord label.
func Chroma(label string) ([]float64, error) {
	pcs, err := PitchClasses(label)
	if err != nil {
		return nil, err
	}
	out := make([]float64, ChromaDim)
	for _, pc := range pcs {
		out[pc] = 1
	}
	return out, nil
}

// Tonnetz returns the 6-d tonal centroid of a chord label: chord tones
// projected onto the three circles and averaged. The no-chord label maps to
// the origin.
func Tonnetz(label string) ([]float64, error) {
	pcs, err := PitchClasses(label)
	if err != nil {
		return nil, err
	}
	out := make([]float64, TonnetzDim)
	if len(pcs) == 0 {
		return out, nil
	}
	for _, pc := range pcs {
		for c, circle := range tonnetzCircles {
			angle := float64(pc) * circle.step
			out[2*c] += circle.radius * math.Sin(angle)
			out[2*c+1] += circle.radius * math.Cos(angle)
		}
	}
	for i := range out {
		out[i] /= float64(len(pcs))
	}
	return out, nil
}

// Templates maps every index of the vocabulary through fn, one row per label.
func (v *Vocabulary) Templates(fn func(string) ([]float64, error)) ([][]float64, error) {
	rows := make([][]float64, len(v.labels))
	for i, label := range v.labels {
		row, err := fn(label)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}
