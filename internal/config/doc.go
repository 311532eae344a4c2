// Package config loads, normalizes, and validates chordseq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CHORDSEQ_STATE_DIR environment
// fallback. The Config type centralizes every knob the decode and selection
// commands need: where stashes, ledgers and logs live, how penalties are swept,
// and how checkpoint candidates are validated.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
