// Package params stores checkpoint parameter sets: named gonum matrices.
//
// A checkpoint file is a small header, one entry per matrix in name order
// (name plus the matrix's own binary encoding), and a CRC32 trailer over
// everything before it. Truncated or corrupted files fail to load with
// faults.ErrCheckpointLoad so the selector can skip them.
package params
