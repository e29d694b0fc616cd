// Package regfile loads id-keyed registries declared in YAML or JSON files.
//
// A registry file holds one top-level section listing its entries:
//
//	watches:
//	  - id: app-config
//	    path: /v1/kv/app?recurse
package regfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Schema describes how the entries of one registry file are read.
type Schema[T any] struct {
	// Section is the top-level key holding the entry list, e.g. "watches".
	Section string
	// ID returns the unique key of an entry.
	ID func(T) string
	// Normalize trims and defaults an entry before validation. Optional.
	Normalize func(T) T
	// Validate rejects an entry. Optional.
	Validate func(T) error
}

// Registry is an ordered, id-indexed set of entries.
type Registry[T any] struct {
	mu    sync.RWMutex
	items []T
	idx   map[string]T
}

// Load reads the registry file at path, choosing the decoder by extension.
func Load[T any](path string, s Schema[T]) (*Registry[T], error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%s file path is empty", s.Section)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", s.Section, err)
	}
	return Parse(raw, filepath.Ext(path), s)
}

// Parse decodes registry content. An empty ext tries YAML first, then JSON.
func Parse[T any](data []byte, ext string, s Schema[T]) (*Registry[T], error) {
	if s.ID == nil || s.Section == "" {
		return nil, errors.New("registry schema needs a section and an id func")
	}

	entries, err := decode[T](data, ext, s.Section)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s file contains no %s entries", s.Section, s.Section)
	}

	reg := &Registry[T]{
		items: make([]T, 0, len(entries)),
		idx:   make(map[string]T, len(entries)),
	}
	for i, entry := range entries {
		if s.Normalize != nil {
			entry = s.Normalize(entry)
		}
		if s.Validate != nil {
			if err := s.Validate(entry); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", s.Section, i, err)
			}
		}
		id := s.ID(entry)
		if _, exists := reg.idx[id]; exists {
			return nil, fmt.Errorf("duplicate %s id %q", s.Section, id)
		}
		reg.items = append(reg.items, entry)
		reg.idx[id] = entry
	}
	return reg, nil
}

func decode[T any](data []byte, ext, section string) ([]T, error) {
	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
		{ext: ".json", fn: json.Unmarshal},
	}

	ext = strings.ToLower(strings.TrimSpace(ext))
	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var doc map[string][]T
		if err := d.fn(data, &doc); err != nil {
			lastErr = err
			continue
		}
		return doc[section], nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("unsupported extension %q", ext)
	}
	return nil, fmt.Errorf("%s file format not recognized (expected YAML or JSON): %w", section, lastErr)
}

// ByID returns the entry with the given id.
func (r *Registry[T]) ByID(id string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.idx[strings.TrimSpace(id)]
	return v, ok
}

// All returns a copy of every entry in file order.
func (r *Registry[T]) All() []T {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Filter returns the entries for which keep reports true, in file order.
func (r *Registry[T]) Filter(keep func(T) bool) []T {
	all := r.All()
	out := make([]T, 0, len(all))
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
