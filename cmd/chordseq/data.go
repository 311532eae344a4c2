package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"chordseq/internal/decode"
	"chordseq/internal/model"
	"chordseq/internal/stash"
)

// openStash opens an existing stash file.
func openStash(ctx context.Context, path string) (*stash.Store, error) {
	if _, err := statFile(path); err != nil {
		return nil, err
	}
	return stash.Open(ctx, path)
}

// loadEntities reads every posterior entity in the stash, or only keys when
// given.
func loadEntities(ctx context.Context, store *stash.Store, keys []string) (map[string]decode.Entity, error) {
	if len(keys) == 0 {
		all, err := store.Keys(ctx)
		if err != nil {
			return nil, err
		}
		keys = all
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("stash %s holds no entities", store.Path())
	}
	entities := make(map[string]decode.Entity, len(keys))
	for _, key := range keys {
		rec, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		entity, err := decode.EntityFrom(rec)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", key, err)
		}
		entities[key] = entity
	}
	return entities, nil
}

// loadExamples reads every validation example in the stash. Keys without
// both features and chord_idx are ignored.
func loadExamples(ctx context.Context, store *stash.Store) ([]model.Example, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var examples []model.Example
	for _, key := range keys {
		rec, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if _, ok := rec.Field(model.FieldFeatures); !ok {
			continue
		}
		if _, ok := rec.Field(model.FieldChordIdx); !ok {
			continue
		}
		example, err := model.ExampleFrom(rec)
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", key, err)
		}
		examples = append(examples, example)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("stash %s holds no validation examples", store.Path())
	}
	return examples, nil
}

// annotationFileName maps a stash key to a file name. Keys are path-escaped,
// so separators never reach the file system and distinct keys never share a
// name.
func annotationFileName(key string) string {
	return url.PathEscape(key) + ".json"
}

func sweepFileName(key string, penalty float64) string {
	return url.PathEscape(key) + "_p" + strconv.FormatFloat(penalty, 'g', -1, 64) + ".json"
}
