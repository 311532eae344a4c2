package decode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/faults"
)

// Options carries decoder tuning beyond the penalty.
type Options struct {
	// Exhaustive compares every predecessor label at every frame,
	// O(frames × labels²). The default uses the best/second-best reduction,
	// O(frames × labels); both produce identical paths.
	Exhaustive bool
}

// lattice holds the pre-allocated (frame × label) arenas for one decode.
type lattice struct {
	frames int
	labels int
	loglik []float64
	score  []float64
	back   []int
}

func newLattice(posterior mat.Matrix) (*lattice, error) {
	frames, labels := posterior.Dims()
	if frames == 0 || labels == 0 {
		return nil, faults.Wrap(faults.ErrShapeMismatch, "decode", "viterbi", "posterior is empty", nil)
	}
	l := &lattice{
		frames: frames,
		labels: labels,
		loglik: make([]float64, frames*labels),
		score:  make([]float64, frames*labels),
		back:   make([]int, frames*labels),
	}
	for t := 0; t < frames; t++ {
		for j := 0; j < labels; j++ {
			p := posterior.At(t, j)
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
				return nil, faults.Wrap(faults.ErrValidation, "decode", "viterbi", fmt.Sprintf("posterior[%d,%d]=%v is not a probability", t, j, p), nil)
			}
			// log(0) = -Inf is legal and never an error.
			l.loglik[t*labels+j] = math.Log(p)
		}
	}
	return l, nil
}

// Viterbi returns the highest-scoring label path for the posterior, where the
// score of a path is the sum of its log-likelihoods minus penalty for every
// change of label between adjacent frames.
//
// Ties are broken deterministically: staying on the previous label wins over
// an equally scoring switch, and otherwise the lowest label index wins.
func Viterbi(posterior mat.Matrix, penalty float64, opts Options) ([]int, error) {
	if math.IsNaN(penalty) || math.IsInf(penalty, 0) || penalty < 0 {
		return nil, faults.Wrap(faults.ErrValidation, "decode", "viterbi", fmt.Sprintf("penalty %v must be finite and non-negative", penalty), nil)
	}
	l, err := newLattice(posterior)
	if err != nil {
		return nil, err
	}

	V := l.labels
	for j := 0; j < V; j++ {
		l.score[j] = l.loglik[j]
		l.back[j] = j
	}
	for t := 1; t < l.frames; t++ {
		if opts.Exhaustive {
			l.stepExhaustive(t, penalty)
		} else {
			l.step(t, penalty)
		}
	}

	path := make([]int, l.frames)
	path[l.frames-1] = argmax(l.score[(l.frames-1)*V:])
	for t := l.frames - 1; t > 0; t-- {
		path[t-1] = l.back[t*V+path[t]]
	}
	return path, nil
}

// step extends every label by one frame using the best and second-best
// predecessors: the best non-matching predecessor of label j is b1 unless
// j == b1, in which case it is b2.
func (l *lattice) step(t int, penalty float64) {
	V := l.labels
	prev := l.score[(t-1)*V : t*V]
	b1, b2 := bestTwo(prev)
	for j := 0; j < V; j++ {
		best, from := prev[j], j
		other := b1
		if j == b1 {
			other = b2
		}
		if other >= 0 {
			if switched := prev[other] - penalty; switched > best {
				best, from = switched, other
			}
		}
		l.score[t*V+j] = best + l.loglik[t*V+j]
		l.back[t*V+j] = from
	}
}

func (l *lattice) stepExhaustive(t int, penalty float64) {
	V := l.labels
	prev := l.score[(t-1)*V : t*V]
	for j := 0; j < V; j++ {
		best, from := prev[j], j
		for k := 0; k < V; k++ {
			if k == j {
				continue
			}
			if switched := prev[k] - penalty; switched > best {
				best, from = switched, k
			}
		}
		l.score[t*V+j] = best + l.loglik[t*V+j]
		l.back[t*V+j] = from
	}
}

// bestTwo returns the lowest-index maximum and the lowest-index maximum among
// the remaining entries (-1 when there is only one entry).
func bestTwo(values []float64) (int, int) {
	b1 := argmax(values)
	b2 := -1
	for k, v := range values {
		if k == b1 {
			continue
		}
		if b2 < 0 || v > values[b2] {
			b2 = k
		}
	}
	return b1, b2
}

func argmax(values []float64) int {
	best := 0
	for k := 1; k < len(values); k++ {
		if values[k] > values[best] {
			best = k
		}
	}
	return best
}

