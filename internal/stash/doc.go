// Package stash persists keyed entities in SQLite. An entity is a set of
// named float matrices: posterior entities carry "posterior" and
// "time_points", validation examples carry "features" and "chord_idx".
//
// Records returned by Get satisfy the Fields interfaces of the decode and
// model packages, so callers turn them into decode.Entity or model.Example
// values without copying. JSON import is provided for interchange with the
// tools that produce posteriors.
package stash
