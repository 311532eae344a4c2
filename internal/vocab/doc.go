// Package vocab maps chord label indices to human-readable chord labels.
//
// The three deployed vocabularies are built in: 25 classes (major/minor
// triads), 61 classes (adds sevenths), and 157 classes (thirteen qualities).
// Each is laid out quality-major, index = quality*12 + root, with the no-chord
// label "N" in the final slot. Custom vocabularies can be loaded from a text
// list with one label per line.
package vocab
