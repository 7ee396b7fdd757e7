package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/situation-hq/situation-monitor/internal/domain"
)

var bucketName = []byte("batches")

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// Batch is a persisted last-known-good aggregation result. Unlike the TTL
// cache it survives expiry and restarts, so the HTTP layer can serve stale
// data when every upstream source is down.
type Batch struct {
	Articles []domain.Article `json:"articles"`
	Sources  []string         `json:"sources"`
	SavedAt  time.Time        `json:"savedAt"`
}

// Store is a bbolt-backed batch store keyed the same way as the cache.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists batch under key, overwriting any previous snapshot.
func (s *Store) Save(key string, batch Batch) error {
	if batch.SavedAt.IsZero() {
		batch.SavedAt = time.Now()
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot stored under key, or ErrNotFound.
func (s *Store) Load(key string) (Batch, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Batch{}, fmt.Errorf("read snapshot: %w", err)
	}
	if raw == nil {
		return Batch{}, ErrNotFound
	}

	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return Batch{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return batch, nil
}
