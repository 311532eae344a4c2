// Package decode turns per-frame chord posteriors into labelled time intervals.
//
// Posterior runs a Viterbi search whose only transition structure is a
// self-transition bonus: moving to a different label than the previous frame
// costs a fixed penalty. The resulting label path is compressed into maximal
// runs, each mapped onto the example's time grid and scored by the mean
// log-likelihood of its chosen label.
//
// The decoder is pure: it never mutates its inputs and holds no state between
// calls, so the sweep package can fan calls out across goroutines freely.
package decode
