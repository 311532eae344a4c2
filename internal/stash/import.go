package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// ImportJSON reads a document of the form
//
//	{"<key>": {"<field>": [[...], ...] | [...]}, ...}
//
// and stores every entity. Flat arrays become 1×n row vectors. It returns the
// imported keys in ascending order.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) ([]string, error) {
	var doc map[string]map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode stash json: %w", err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("stash json holds no entities")
	}

	entities := make(map[string]map[string]*mat.Dense, len(doc))
	for key, raw := range doc {
		fields := make(map[string]*mat.Dense, len(raw))
		for name, value := range raw {
			m, err := parseMatrix(value)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", key, name, err)
			}
			fields[name] = m
		}
		entities[key] = fields
	}

	keys := make([]string, 0, len(entities))
	for key := range entities {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Put(ctx, key, entities[key]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func parseMatrix(raw json.RawMessage) (*mat.Dense, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected an array")
	}
	inner := bytes.TrimSpace(trimmed[1:])
	if len(inner) > 0 && inner[0] == '[' {
		var rows [][]float64
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 || len(rows[0]) == 0 {
			return nil, fmt.Errorf("empty matrix")
		}
		cols := len(rows[0])
		data := make([]float64, 0, len(rows)*cols)
		for i, row := range rows {
			if len(row) != cols {
				return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), cols)
			}
			data = append(data, row...)
		}
		return mat.NewDense(len(rows), cols, data), nil
	}
	var flat []float64
	if err := json.Unmarshal(trimmed, &flat); err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return mat.NewDense(1, len(flat), flat), nil
}
