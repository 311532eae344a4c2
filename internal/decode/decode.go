package decode

import (
	"fmt"
	"math"

	"chordseq/internal/faults"
	"chordseq/internal/vocab"
)

// Posterior decodes one entity into an annotation: Viterbi path, interval
// compression, and per-interval confidence.
func Posterior(entity Entity, penalty float64, v *vocab.Vocabulary, opts Options) (*Annotation, error) {
	if v == nil {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "decode", "posterior", "vocabulary is nil", nil)
	}
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	path, err := Viterbi(entity.Posterior, penalty, opts)
	if err != nil {
		return nil, err
	}

	runs := Runs(path)
	indices := make([]int, len(runs))
	for i, r := range runs {
		indices[i] = r.Label
	}
	labels, err := v.IndexToLabel(indices)
	if err != nil {
		return nil, faults.Wrap(faults.ErrInvalidVocabulary, "decode", "posterior", fmt.Sprintf("posterior has %d columns for vocabulary %s", entity.Posterior.RawMatrix().Cols, v.Name()), err)
	}

	chosen := chosenLogLikelihood(entity, path)
	annotation := &Annotation{Penalty: penalty, Intervals: make([]Interval, len(runs))}
	for i, r := range runs {
		start, end := r.Span(entity.TimePoints)
		annotation.Intervals[i] = Interval{
			Start:      start,
			End:        end,
			Label:      labels[i],
			Confidence: r.Confidence(chosen),
		}
	}
	return annotation, nil
}

func chosenLogLikelihood(entity Entity, path []int) []float64 {
	out := make([]float64, len(path))
	for t, j := range path {
		out[t] = math.Log(entity.Posterior.At(t, j))
	}
	return out
}
