package stash

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Record is one entity read from the stash.
type Record struct {
	Key    string
	fields map[string]*mat.Dense
}

// NewRecord wraps fields as a record.
func NewRecord(key string, fields map[string]*mat.Dense) *Record {
	return &Record{Key: key, fields: fields}
}

// Field returns the named matrix.
func (r *Record) Field(name string) (*mat.Dense, bool) {
	m, ok := r.fields[name]
	return m, ok
}

// Names lists the record's fields in ascending order.
func (r *Record) Names() []string {
	return sortedNames(r.fields)
}

// Fields returns the record's matrices.
func (r *Record) Fields() map[string]*mat.Dense {
	return r.fields
}

func sortedNames(fields map[string]*mat.Dense) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
