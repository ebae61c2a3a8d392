// Package sync implements the offline-first synchronization engine. Every
// mutation applies to the local store first, then best-effort to the
// remote store; failures and offline periods land in the durable
// operation queue, which a drain replays once connectivity returns.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/stitchbook/internal/connectivity"
	"github.com/hyperengineering/stitchbook/internal/localstore"
	"github.com/hyperengineering/stitchbook/internal/notify"
	"github.com/hyperengineering/stitchbook/internal/queue"
	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/types"
)

var (
	// ErrNotAuthenticated is returned by mutations issued without an
	// authenticated user. Never retried.
	ErrNotAuthenticated = errors.New("sync: not authenticated")

	// ErrRecordNotFound is returned when the target record is absent
	// from the local collection.
	ErrRecordNotFound = errors.New("sync: record not found")

	// ErrOffline is returned by SyncNow when the client is offline.
	ErrOffline = errors.New("sync: offline")
)

// UserProvider supplies the id of the authenticated owner. An empty id
// means nobody is logged in.
type UserProvider interface {
	UserID() string
}

// Engine orchestrates the local store, the operation queue, and the
// remote client. One Engine instance serves the whole application; it is
// owned by the composition root, never a package singleton.
type Engine struct {
	store    *localstore.Store
	queue    *queue.Queue
	remote   remote.Client
	checker  connectivity.Checker
	notifier notify.Notifier
	user     UserProvider

	// conflictRetryDelay is the fixed pause before re-attempting a
	// create that the server rejected with Conflict.
	conflictRetryDelay time.Duration

	draining atomic.Bool
}

// New creates an Engine with all collaborators injected.
func New(
	store *localstore.Store,
	q *queue.Queue,
	client remote.Client,
	checker connectivity.Checker,
	notifier notify.Notifier,
	user UserProvider,
) *Engine {
	return &Engine{
		store:              store,
		queue:              q,
		remote:             client,
		checker:            checker,
		notifier:           notifier,
		user:               user,
		conflictRetryDelay: 500 * time.Millisecond,
	}
}

// SetConflictRetryDelay overrides the pause between create attempts
// after a Conflict response.
func (e *Engine) SetConflictRetryDelay(d time.Duration) {
	if d > 0 {
		e.conflictRetryDelay = d
	}
}

// Create stamps ownership and timestamps onto data and persists it. When
// online it lets the server assign the document id; on remote failure or
// offline it assigns a temporary local id, marks the record pendingSync,
// and queues a create for the next drain. The record is always durable
// locally when Create returns without error.
func (e *Engine) Create(ctx context.Context, collection string, data map[string]any) (types.Record, error) {
	userID := e.user.UserID()
	if userID == "" {
		return types.Record{}, ErrNotAuthenticated
	}

	now := time.Now().UTC()
	rec := types.Record{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    sanitizeFields(data),
	}

	if e.checker.Online() {
		doc, err := e.createRemote(ctx, collection, remotePayload(rec))
		if err == nil {
			rec.ID = doc.ID
			rec.PendingSync = false
			if err := e.appendLocal(collection, rec); err != nil {
				return types.Record{}, err
			}
			return rec, nil
		}
		slog.Warn("remote create failed, queueing",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
	}

	// Offline, or the remote attempt failed: local write plus queue.
	rec.ID = ulid.Make().String()
	rec.PendingSync = true
	if err := e.appendLocal(collection, rec); err != nil {
		return types.Record{}, err
	}

	op := types.QueuedOperation{
		Kind:       types.OpCreate,
		Collection: collection,
		RecordID:   rec.ID,
		Payload:    remotePayload(rec),
		StorageKey: collection,
	}
	if err := e.queue.Enqueue(op); err != nil {
		return types.Record{}, fmt.Errorf("queue create: %w", err)
	}
	e.notifier.Warning("Saved locally - will sync when online")
	return rec, nil
}

// createRemote attempts a server-assigned-id create. A Conflict response
// means a transient id race rather than an unreachable server, so it is
// retried after a short fixed delay instead of falling back to the queue.
func (e *Engine) createRemote(ctx context.Context, collection string, payload map[string]any) (*remote.Document, error) {
	var doc *remote.Document
	backoff := retry.WithMaxRetries(2, retry.NewConstant(e.conflictRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		doc, err = e.remote.CreateDocument(ctx, collection, remote.ServerAssignedID, payload)
		if errors.Is(err, remote.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Update applies a partial field set to the record, local store first so
// the caller never waits on the network. The userId field can never be
// overwritten. Updates to a still-pending record are queued directly:
// the remote side has nothing to update yet.
func (e *Engine) Update(ctx context.Context, collection, id string, updates map[string]any) (types.Record, error) {
	fields := sanitizeFields(updates)

	records, err := e.store.Read(collection)
	if err != nil {
		return types.Record{}, err
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return types.Record{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, collection, id)
	}

	updated := records[idx].Clone()
	for k, v := range fields {
		updated.Fields[k] = v
	}
	updated.UpdatedAt = time.Now().UTC()
	records[idx] = updated

	if err := e.store.Write(collection, records); err != nil {
		return types.Record{}, err
	}

	op := types.QueuedOperation{
		Kind:       types.OpUpdate,
		Collection: collection,
		RecordID:   id,
		Payload:    fields,
		StorageKey: collection,
	}

	if updated.PendingSync {
		// No remote counterpart exists yet; the queued update rides
		// behind the pending create.
		if err := e.queue.Enqueue(op); err != nil {
			return types.Record{}, fmt.Errorf("queue update: %w", err)
		}
		return updated, nil
	}

	if e.checker.Online() {
		_, err := e.remote.UpdateDocument(ctx, collection, id, fields)
		if err == nil {
			return updated, nil
		}
		slog.Warn("remote update failed, queueing",
			"component", "sync",
			"collection", collection,
			"record_id", id,
			"error", err,
		)
	}

	if err := e.queue.Enqueue(op); err != nil {
		return types.Record{}, fmt.Errorf("queue update: %w", err)
	}
	e.notifier.Warning("Updated locally - will sync when online")
	return updated, nil
}

// Delete removes the record locally, then remotely. Deleting a record
// that was never confirmed remotely is locally terminal: any queued
// operations targeting it are purged so nothing orphaned reaches the
// remote store.
func (e *Engine) Delete(ctx context.Context, collection, id string) error {
	records, err := e.store.Read(collection)
	if err != nil {
		return err
	}

	var target *types.Record
	kept := make([]types.Record, 0, len(records))
	for i := range records {
		if records[i].ID == id {
			target = &records[i]
			continue
		}
		kept = append(kept, records[i])
	}
	if target == nil {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, collection, id)
	}

	if err := e.store.Write(collection, kept); err != nil {
		return err
	}

	if target.PendingSync {
		return e.purgeQueuedOps(collection, id)
	}

	if e.checker.Online() {
		err := e.remote.DeleteDocument(ctx, collection, id)
		if err == nil {
			return nil
		}
		slog.Warn("remote delete failed, queueing",
			"component", "sync",
			"collection", collection,
			"record_id", id,
			"error", err,
		)
	}

	op := types.QueuedOperation{
		Kind:       types.OpDelete,
		Collection: collection,
		RecordID:   id,
		StorageKey: collection,
	}
	if err := e.queue.Enqueue(op); err != nil {
		return fmt.Errorf("queue delete: %w", err)
	}
	e.notifier.Warning("Deleted locally - will sync when online")
	return nil
}

// purgeQueuedOps drops every queued operation targeting the given record.
func (e *Engine) purgeQueuedOps(collection, id string) error {
	ops, err := e.queue.Snapshot()
	if err != nil {
		return err
	}
	kept := ops[:0]
	for _, op := range ops {
		if op.Collection == collection && op.RecordID == id {
			continue
		}
		kept = append(kept, op)
	}
	if len(kept) == len(ops) {
		return nil
	}
	return e.queue.ReplaceWith(kept)
}

// Fetch refreshes a collection from the remote store. Offline or on
// remote failure it falls back to the user's local subset. A successful
// fetch overwrites the local collection, but records still awaiting their
// first sync are merged back in so a refresh can never lose local-only
// data.
func (e *Engine) Fetch(ctx context.Context, collection string) ([]types.Record, error) {
	userID := e.user.UserID()
	if userID == "" {
		// A background refresh without a session is an error condition,
		// not a crash.
		slog.Error("fetch without authenticated user",
			"component", "sync",
			"collection", collection,
		)
		return []types.Record{}, nil
	}

	if !e.checker.Online() {
		return e.localSubset(collection, userID)
	}

	docs, err := e.remote.ListDocuments(ctx, collection, userID)
	if err != nil {
		slog.Warn("remote fetch failed, serving local data",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
		e.notifier.Error("Could not fetch latest data")
		return e.localSubset(collection, userID)
	}

	fetched := make([]types.Record, 0, len(docs))
	for _, doc := range docs {
		fetched = append(fetched, recordFromDocument(doc, userID))
	}

	// Guard: re-insert pending records the overwrite would drop.
	local, err := e.store.Read(collection)
	if err != nil {
		return nil, err
	}
	remoteIDs := make(map[string]struct{}, len(fetched))
	for _, rec := range fetched {
		remoteIDs[rec.ID] = struct{}{}
	}
	for _, rec := range local {
		if !rec.PendingSync {
			continue
		}
		if _, ok := remoteIDs[rec.ID]; ok {
			continue
		}
		fetched = append(fetched, rec)
	}

	if err := e.store.Write(collection, fetched); err != nil {
		return nil, err
	}
	e.recordSyncTime(time.Now().UTC())

	return fetched, nil
}

func (e *Engine) localSubset(collection, userID string) ([]types.Record, error) {
	records, err := e.store.Read(collection)
	if err != nil {
		return nil, err
	}
	subset := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.UserID == userID {
			subset = append(subset, rec)
		}
	}
	return subset, nil
}

// Status derives the current sync state.
func (e *Engine) Status() types.Status {
	pending, err := e.queue.Len()
	if err != nil {
		slog.Error("failed to read queue length",
			"component", "sync",
			"error", err,
		)
	}

	status := types.Status{
		PendingOperations: pending,
		Online:            e.checker.Online(),
		DrainInProgress:   e.draining.Load(),
	}

	if raw, ok, _ := e.store.Get(localstore.KeyLastSync); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			status.LastSync = &t
		}
	}
	return status
}

// OnReconnect handles the offline→online transition: announce it and
// drain whatever accumulated while offline.
func (e *Engine) OnReconnect(ctx context.Context) {
	e.notifier.Success("Back online - syncing data...")
	if err := e.DrainQueue(ctx); err != nil {
		slog.Error("drain after reconnect failed",
			"component", "sync",
			"error", err,
		)
	}
}

// OnDisconnect handles the online→offline transition.
func (e *Engine) OnDisconnect() {
	e.notifier.Warning("Offline - changes will sync when online")
}

// SyncNow is the user-invoked drain. Fails fast when offline.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.checker.Online() {
		e.notifier.Error("Cannot sync - you are offline")
		return ErrOffline
	}
	e.notifier.Info("Starting sync...")
	return e.DrainQueue(ctx)
}

func (e *Engine) recordSyncTime(t time.Time) {
	if err := e.store.Put(localstore.KeyLastSync, t.Format(time.RFC3339Nano)); err != nil {
		slog.Error("failed to persist last sync time",
			"component", "sync",
			"error", err,
		)
	}
}

// appendLocal appends rec to the stored collection.
func (e *Engine) appendLocal(collection string, rec types.Record) error {
	records, err := e.store.Read(collection)
	if err != nil {
		return err
	}
	records = append(records, rec)
	return e.store.Write(collection, records)
}

// sanitizeFields copies data, dropping reserved envelope names so a
// caller can never smuggle in an id, owner, or sync flag.
func sanitizeFields(data map[string]any) map[string]any {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case types.FieldID, types.FieldUserID, types.FieldCreatedAt, types.FieldUpdatedAt, types.FieldPendingSync:
			continue
		}
		fields[k] = v
	}
	return fields
}

// remotePayload builds the document body sent to the remote store: the
// open fields plus ownership and timestamps. The id and the pendingSync
// flag are local concerns and never leave the client.
func remotePayload(rec types.Record) map[string]any {
	payload := make(map[string]any, len(rec.Fields)+3)
	for k, v := range rec.Fields {
		payload[k] = v
	}
	payload[types.FieldUserID] = rec.UserID
	payload[types.FieldCreatedAt] = rec.CreatedAt.Format(time.RFC3339Nano)
	payload[types.FieldUpdatedAt] = rec.UpdatedAt.Format(time.RFC3339Nano)
	return payload
}

// recordFromDocument converts a remote document into a confirmed record.
func recordFromDocument(doc remote.Document, userID string) types.Record {
	rec := types.Record{
		ID:          doc.ID,
		UserID:      userID,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PendingSync: false,
		Fields:      make(map[string]any, len(doc.Fields)),
	}
	for k, v := range doc.Fields {
		switch k {
		case types.FieldUserID:
			if s, ok := v.(string); ok {
				rec.UserID = s
			}
		case types.FieldCreatedAt:
			if t := parseDocTime(v); !t.IsZero() {
				rec.CreatedAt = t
			}
		case types.FieldUpdatedAt:
			if t := parseDocTime(v); !t.IsZero() {
				rec.UpdatedAt = t
			}
		case types.FieldID, types.FieldPendingSync:
			// local concerns, ignore
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}

func parseDocTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
