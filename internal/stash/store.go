package stash

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"chordseq/internal/dbutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("stash key not found")

// Store is a SQLite-backed entity stash.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the stash at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := dbutil.Open(ctx, path, dbutil.Schema{Name: "stash", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file backing the store.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put replaces the entity stored under key with fields.
func (s *Store) Put(ctx context.Context, key string, fields map[string]*mat.Dense) error {
	if key == "" {
		return fmt.Errorf("put: empty key")
	}
	if len(fields) == 0 {
		return fmt.Errorf("put %s: entity has no fields", key)
	}
	type encoded struct {
		name       string
		rows, cols int
		data       []byte
	}
	rows := make([]encoded, 0, len(fields))
	for _, name := range sortedNames(fields) {
		m := fields[name]
		if m == nil || m.IsEmpty() {
			return fmt.Errorf("put %s: field %s is empty", key, name)
		}
		data, err := m.MarshalBinary()
		if err != nil {
			return fmt.Errorf("put %s: encode %s: %w", key, name, err)
		}
		r, c := m.Dims()
		rows = append(rows, encoded{name: name, rows: r, cols: c, data: data})
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	return dbutil.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE key = ?", key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entities (key, field, rows, cols, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
				key, row.name, row.rows, row.cols, row.data, timestamp,
			); err != nil {
				return fmt.Errorf("insert %s/%s: %w", key, row.name, err)
			}
		}
		return nil
	})
}

// Get loads every field stored under key.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT field, rows, cols, data FROM entities WHERE key = ? ORDER BY field", key)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", key, err)
	}
	defer rows.Close()

	rec := &Record{Key: key, fields: make(map[string]*mat.Dense)}
	for rows.Next() {
		var (
			name string
			r, c int
			data []byte
		)
		if err := rows.Scan(&name, &r, &c, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", key, err)
		}
		m := &mat.Dense{}
		if err := m.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", key, name, err)
		}
		if gr, gc := m.Dims(); gr != r || gc != c {
			return nil, fmt.Errorf("decode %s/%s: stored as %dx%d, payload is %dx%d", key, name, r, c, gr, gc)
		}
		rec.fields[name] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", key, err)
	}
	if len(rec.fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rec, nil
}

// Keys lists the stored keys in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT key FROM entities ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Summary describes one stored entity without loading its payloads.
type Summary struct {
	Key    string
	Fields []FieldShape
}

// FieldShape is a field name with its matrix dimensions.
type FieldShape struct {
	Name       string
	Rows, Cols int
}

// List summarises every entity, ordered by key then field.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, field, rows, cols FROM entities ORDER BY key, field")
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var (
			key   string
			shape FieldShape
		)
		if err := rows.Scan(&key, &shape.Name, &shape.Rows, &shape.Cols); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Key != key {
			out = append(out, Summary{Key: key})
		}
		last := &out[len(out)-1]
		last.Fields = append(last.Fields, shape)
	}
	return out, rows.Err()
}

// Delete removes key. Deleting an unknown key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := dbutil.Exec(ctx, s.db, "DELETE FROM entities WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
