// Package dbutil opens the SQLite databases chordseq keeps (the entity stash
// and the run ledger) and provides the busy-retry and schema-version helpers
// both share.
//
// Databases are opened in WAL mode with foreign keys enforced and a busy
// timeout. A schema_version table records the version the database was
// created with; opening a database written by another schema version fails
// with ErrSchemaMismatch rather than migrating in place.
package dbutil
