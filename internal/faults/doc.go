// Package faults defines the error markers shared by the decoder, the sweep
// pool, and the checkpoint selector.
//
// Key responsibilities:
//   - Sentinel markers that callers match with errors.Is to tell fatal
//     failures (shape mismatch, no valid checkpoint) from recoverable ones
//     (a single unreadable checkpoint).
//   - The Wrap helper that prefixes component and operation context while
//     keeping both the marker and the underlying cause inspectable.
//
// Wrap new failures through this package so the CLI and the selection loop
// classify them the same way.
package faults
