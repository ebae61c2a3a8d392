package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/types"
)

// DrainQueue replays every queued operation against the remote store in
// FIFO order. Only one drain runs at a time; a second caller returns
// immediately. Operations that fail with a retriable error stay queued
// in their original order; the rest are removed whether they succeeded
// or turned out to be moot.
func (e *Engine) DrainQueue(ctx context.Context) error {
	if !e.draining.CompareAndSwap(false, true) {
		slog.Debug("drain already in progress", "component", "sync")
		return nil
	}
	defer e.draining.Store(false)

	if !e.checker.Online() {
		return nil
	}

	ops, err := e.queue.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot queue: %w", err)
	}
	if len(ops) == 0 {
		return nil
	}

	slog.Info("draining operation queue",
		"component", "sync",
		"pending", len(ops),
	)

	var (
		failed []types.QueuedOperation
		synced int
		// idRewrites maps a temporary local id to the server-assigned
		// id produced by replaying its create. Later operations in the
		// same drain are rewritten before replay.
		idRewrites = make(map[string]string)
		// blocked marks record ids whose create failed this drain;
		// their updates and deletes must wait behind it.
		blocked = make(map[string]struct{})
		// localIDs are record ids assigned locally: they only become
		// valid remote targets once their create replays and rewrites
		// them. Identified from the batch itself, not from id shape.
		localIDs = make(map[string]struct{})
	)

	for _, op := range ops {
		if op.Kind == types.OpCreate {
			localIDs[op.RecordID] = struct{}{}
		}
	}

	for _, op := range ops {
		if _, ok := blocked[op.RecordID]; ok {
			failed = append(failed, op)
			continue
		}
		if serverID, ok := idRewrites[op.RecordID]; ok {
			op.RecordID = serverID
		} else if _, local := localIDs[op.RecordID]; local && op.Kind != types.OpCreate {
			// The create this operation depends on is ahead of it in
			// the queue and has not replayed yet, or it failed without
			// blocking (it cannot have: blocked is checked above). The
			// remaining possibility is queue ordering corruption.
			failed = append(failed, op)
			continue
		}

		outcome, serverID := e.replay(ctx, op)
		switch outcome {
		case replaySynced:
			synced++
			if op.Kind == types.OpCreate && serverID != "" && serverID != op.RecordID {
				idRewrites[op.RecordID] = serverID
				e.rewriteLocalID(op.StorageKey, op.RecordID, serverID)
			} else if op.Kind == types.OpCreate {
				e.clearPendingFlag(op.StorageKey, op.RecordID)
			}
		case replayMoot:
			// Target already gone or already applied remotely; nothing
			// left to do for this operation.
			synced++
			if op.Kind == types.OpCreate {
				// The record exists remotely under a server id we never
				// learned. Clearing the flag lets the next fetch replace
				// the temp-id copy with the remote one.
				e.clearPendingFlag(op.StorageKey, op.RecordID)
			}
		case replayFailed:
			failed = append(failed, op)
			if op.Kind == types.OpCreate {
				blocked[op.RecordID] = struct{}{}
			}
		case replayAbandoned:
			slog.Warn("abandoning unreplayable operation",
				"component", "sync",
				"op_id", op.ID,
				"kind", op.Kind,
				"collection", op.Collection,
				"record_id", op.RecordID,
			)
		}
	}

	if err := e.queue.ReplaceWith(failed); err != nil {
		return fmt.Errorf("write back queue: %w", err)
	}
	e.recordSyncTime(time.Now().UTC())

	total := len(ops)
	if synced == total {
		e.notifier.Success(fmt.Sprintf("All %d changes synced!", total))
	} else {
		e.notifier.Warning(fmt.Sprintf("Synced %d/%d changes", synced, total))
	}
	slog.Info("drain complete",
		"component", "sync",
		"synced", synced,
		"failed", len(failed),
	)
	return nil
}

type replayOutcome int

const (
	replaySynced replayOutcome = iota
	replayMoot
	replayFailed
	replayAbandoned
)

// replay executes a single queued operation against the remote store.
// For creates it returns the server-assigned document id.
func (e *Engine) replay(ctx context.Context, op types.QueuedOperation) (replayOutcome, string) {
	switch op.Kind {
	case types.OpCreate:
		doc, err := e.remote.CreateDocument(ctx, op.Collection, remote.ServerAssignedID, op.Payload)
		if err == nil {
			return replaySynced, doc.ID
		}
		if errors.Is(err, remote.ErrConflict) {
			// The create already landed on a previous drain that died
			// before trimming the queue. Replaying it again is a no-op.
			return replayMoot, ""
		}
		return replayFailed, ""

	case types.OpUpdate:
		_, err := e.remote.UpdateDocument(ctx, op.Collection, op.RecordID, op.Payload)
		if err == nil {
			return replaySynced, ""
		}
		if errors.Is(err, remote.ErrNotFound) {
			return replayMoot, ""
		}
		return replayFailed, ""

	case types.OpDelete:
		err := e.remote.DeleteDocument(ctx, op.Collection, op.RecordID)
		if err == nil {
			return replaySynced, ""
		}
		if errors.Is(err, remote.ErrNotFound) {
			return replayMoot, ""
		}
		return replayFailed, ""
	}

	slog.Error("unknown queued operation kind",
		"component", "sync",
		"op_id", op.ID,
		"kind", op.Kind,
	)
	return replayAbandoned, ""
}

// rewriteLocalID swaps the temporary id on the stored record for the
// server-assigned one and clears its pending flag.
func (e *Engine) rewriteLocalID(collection, tempID, serverID string) {
	records, err := e.store.Read(collection)
	if err != nil {
		slog.Error("failed to rewrite record id",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
		return
	}
	for i := range records {
		if records[i].ID == tempID {
			records[i].ID = serverID
			records[i].PendingSync = false
			break
		}
	}
	if err := e.store.Write(collection, records); err != nil {
		slog.Error("failed to persist rewritten record id",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
	}
}

// clearPendingFlag marks a locally created record as confirmed.
func (e *Engine) clearPendingFlag(collection, id string) {
	records, err := e.store.Read(collection)
	if err != nil {
		slog.Error("failed to clear pending flag",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
		return
	}
	for i := range records {
		if records[i].ID == id {
			records[i].PendingSync = false
			break
		}
	}
	if err := e.store.Write(collection, records); err != nil {
		slog.Error("failed to persist pending flag",
			"component", "sync",
			"collection", collection,
			"error", err,
		)
	}
}
