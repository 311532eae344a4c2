// Package preflight provides readiness checks for the inputs of a selection
// or decode run.
//
// These checks run in two contexts:
//   - "chordseq select" calls RunAll before sampling any batch, so a missing
//     validator definition or unwritable output fails in milliseconds rather
//     than after scoring every candidate.
//   - "chordseq check" prints every result without running anything.
//
// The output check only verifies that the destination directory could be
// written; it creates nothing.
package preflight
