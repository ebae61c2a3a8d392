// Package localstore provides the persistent key-value store that backs
// all collections on the client side. Values are JSON strings; one key per
// collection, plus reserved keys for the operation queue and sync metadata.
package localstore

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// Reserved keys. Collection keys are the collection names themselves.
const (
	KeyQueue       = "sync_queue"
	KeyLastSync    = "last_sync_timestamp"
	KeySessionUser = "session_user"
)

// KV is the raw storage backend contract. Get reports ok=false for an
// absent key rather than an error.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
	Close() error
}

// Store layers the collection contract over a KV backend. Reads of absent
// or corrupt collections return an empty slice; writes fully replace the
// stored sequence.
type Store struct {
	kv KV
}

// New wraps a KV backend.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Read returns all records stored under the collection key. An absent key
// yields an empty slice. Malformed JSON is treated as an empty collection
// and logged loudly; partial recovery is not attempted.
func (s *Store) Read(collection string) ([]types.Record, error) {
	raw, ok, err := s.kv.Get(collection)
	if err != nil {
		return nil, fmt.Errorf("read collection %q: %w", collection, err)
	}
	if !ok || raw == "" {
		return []types.Record{}, nil
	}

	var records []types.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Error("local collection is corrupt, treating as empty",
			"component", "localstore",
			"collection", collection,
			"error", err,
		)
		return []types.Record{}, nil
	}
	return records, nil
}

// Write replaces the stored sequence for the collection. There is no
// partial merge at this layer.
func (s *Store) Write(collection string, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", collection, err)
	}
	if err := s.kv.Put(collection, string(data)); err != nil {
		return fmt.Errorf("write collection %q: %w", collection, err)
	}
	return nil
}

// Get reads a raw value. ok is false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	return s.kv.Get(key)
}

// Put writes a raw value.
func (s *Store) Put(key, value string) error {
	return s.kv.Put(key, value)
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.kv.Delete(key)
}

// Clear removes every collection key plus the reserved sync keys. Used on
// logout so the next user cannot see the previous user's data.
func (s *Store) Clear() error {
	keys := append(types.Collections(), KeyQueue, KeyLastSync, KeySessionUser)
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("clear key %q: %w", key, err)
		}
	}
	return nil
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.kv.Close()
}
