// Package model provides the validation models the checkpoint selector scores
// candidates with, plus the sampler that feeds them held-out batches.
//
// A validator is described by a small TOML definition naming its kind
// (softmax or margin), declared inputs and dimensions. Parameters are loaded
// into its slots from a params.Set, and Evaluate returns named outputs, of
// which total_loss is the one selection averages.
package model
