// Package main hosts the chordseq CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the two halves of the tool: selecting
// the best checkpoint of a training run against held-out data ("select",
// "check") and turning chord posteriors into labelled intervals ("decode",
// "sweep"). Supporting commands manage entity stashes, inspect the run
// ledger, list chord vocabularies, and scaffold configuration.
//
// The command context resolves configuration once, applies the global flag
// overrides, and opens the run ledger plus a per-run log file for commands
// that record runs. Heavy lifting lives in the internal packages; commands
// here only wire inputs, call them, and render results.
package main
