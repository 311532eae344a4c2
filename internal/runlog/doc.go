// Package runlog keeps a SQLite ledger of chordseq runs.
//
// Every selection run records one row per candidate checkpoint (status,
// average loss, failure reason) and the promoted winner. Decode and sweep
// runs record one row per decoded example or penalty with its interval count
// and mean confidence. Runs are keyed by UUID; lookups accept any unique
// prefix of the ID.
package runlog
