// Package selection picks the checkpoint with the lowest validation loss.
//
// SelectBest folds over the candidates strictly in order, carrying the best
// loss and path seen so far. Each candidate's parameters are loaded into the
// validator and scored by AverageLoss over a fixed number of held-out batches.
// Candidates that fail to load or evaluate are logged and skipped; ties keep
// the earlier candidate. Promote copies the winner to its output path under a
// file lock so a failed copy never leaves a partial file behind.
package selection
