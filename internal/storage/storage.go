// Package storage checkpoints the last consistency index seen per watch.
package storage

import (
	"fmt"
	"strings"
)

const (
	TypeNone  = "none"
	TypeBBolt = "bbolt"
)

// Store persists watch indexes across restarts.
type Store interface {
	Close() error
	LastIndex(watchID string) (uint64, bool, error)
	SaveIndex(watchID string, index uint64) error
	// Prune drops checkpoints for watches that are no longer configured.
	Prune(keep []string) (int, error)
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Close() error                           { return nil }
func (noopStore) LastIndex(string) (uint64, bool, error) { return 0, false, nil }
func (noopStore) SaveIndex(string, uint64) error         { return nil }
func (noopStore) Prune([]string) (int, error)            { return 0, nil }
