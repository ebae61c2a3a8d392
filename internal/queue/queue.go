// Package queue implements the durable FIFO log of mutations that have
// not yet been confirmed by the remote store. The queue is the single
// source of truth for what must still happen remotely.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/stitchbook/internal/localstore"
	"github.com/hyperengineering/stitchbook/internal/types"
)

// Queue persists operations as a single JSON array under the reserved
// queue key. All methods are safe for concurrent use; the mutex makes the
// read-modify-write of the stored array atomic within this process.
type Queue struct {
	mu    sync.Mutex
	store *localstore.Store
}

// New returns a Queue backed by the given local store.
func New(store *localstore.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends op to the tail of the queue, stamping its id and
// enqueue time.
func (q *Queue) Enqueue(op types.QueuedOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.load()
	if err != nil {
		return err
	}

	op.ID = ulid.Make().String()
	op.EnqueuedAt = time.Now().UTC()
	ops = append(ops, op)

	return q.save(ops)
}

// Snapshot returns all queued operations in FIFO order. The returned
// slice is a copy; the caller may drain it and then call ReplaceWith with
// whatever failed.
func (q *Queue) Snapshot() ([]types.QueuedOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// ReplaceWith overwrites the queue contents, preserving the given order.
// Used after a drain to keep only the operations that failed.
func (q *Queue) ReplaceWith(ops []types.QueuedOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(ops)
}

// Clear removes all queued operations.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Delete(localstore.KeyQueue); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Len returns the number of queued operations.
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

func (q *Queue) load() ([]types.QueuedOperation, error) {
	raw, ok, err := q.store.Get(localstore.KeyQueue)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if !ok || raw == "" {
		return []types.QueuedOperation{}, nil
	}

	var ops []types.QueuedOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return ops, nil
}

func (q *Queue) save(ops []types.QueuedOperation) error {
	if ops == nil {
		ops = []types.QueuedOperation{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.store.Put(localstore.KeyQueue, string(data)); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}
