// Package sweep fans chord decodes out across a bounded worker pool.
//
// DecodeSweep decodes one entity under many penalties; DecodeBatch decodes
// many entities under one penalty. Both require the caller to opt into batch
// mode explicitly and return results in request order: penalty order for a
// sweep, sorted key order for a batch. Every dispatched decode runs to
// completion; when some fail, the failure with the lowest request position is
// returned alongside the successful results.
package sweep
