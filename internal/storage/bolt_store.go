package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	indexBucket     = "indexes"
	indexValueBytes = 8
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(indexBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// LastIndex returns the checkpointed index for a watch.
func (b *boltStore) LastIndex(watchID string) (uint64, bool, error) {
	if b == nil || b.db == nil {
		return 0, false, nil
	}

	var (
		index uint64
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(indexBucket))
		if bucket == nil {
			return fmt.Errorf("index bucket missing")
		}
		index, found = decodeIndex(bucket.Get([]byte(watchID)))
		return nil
	})
	return index, found, err
}

// SaveIndex records the latest index for a watch.
func (b *boltStore) SaveIndex(watchID string, index uint64) error {
	if b == nil || b.db == nil {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(indexBucket))
		if bucket == nil {
			return fmt.Errorf("index bucket missing")
		}
		buf := make([]byte, indexValueBytes)
		binary.BigEndian.PutUint64(buf, index)
		return bucket.Put([]byte(watchID), buf)
	})
}

// Prune removes checkpoints whose watch id is not in keep, plus unreadable values.
func (b *boltStore) Prune(keep []string) (int, error) {
	if b == nil || b.db == nil {
		return 0, nil
	}

	active := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		active[id] = struct{}{}
	}

	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(indexBucket))
		if bucket == nil {
			return fmt.Errorf("index bucket missing")
		}

		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			_, wanted := active[string(k)]
			if _, ok := decodeIndex(v); !wanted || !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// decodeIndex decodes a stored big-endian index.
func decodeIndex(value []byte) (uint64, bool) {
	if len(value) != indexValueBytes {
		return 0, false
	}
	return binary.BigEndian.Uint64(value), true
}
