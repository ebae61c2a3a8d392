package sync

import (
	"context"
	"testing"

	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/types"
)

// The canonical reconnect flow: create then update a record while
// offline, come back online, drain. The remote store must see exactly
// one create and one update, in that order, the update addressed to the
// server-assigned id, and the local record must carry the server id with
// its pending flag cleared.
func TestDrainReplaysCreateThenUpdateWithIDRewrite(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rec, err := h.engine.Create(ctx, types.CollectionCustomers, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tempID := rec.ID
	if _, err := h.engine.Update(ctx, types.CollectionCustomers, tempID, map[string]any{"phone": "555-0100"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(h.remote.calls) != 2 {
		t.Fatalf("remote calls = %d, want 2", len(h.remote.calls))
	}
	if h.remote.calls[0].method != "create" || h.remote.calls[1].method != "update" {
		t.Fatalf("call order = %s, %s; want create, update", h.remote.calls[0].method, h.remote.calls[1].method)
	}
	if got := h.remote.calls[1].documentID; got != "srv-1" {
		t.Errorf("update addressed to %q, want rewritten id srv-1", got)
	}

	stored := h.mustRead(t, types.CollectionCustomers)
	if len(stored) != 1 {
		t.Fatalf("stored records = %d, want 1", len(stored))
	}
	if stored[0].ID != "srv-1" {
		t.Errorf("local id = %q, want srv-1", stored[0].ID)
	}
	if stored[0].PendingSync {
		t.Error("pending flag must clear after successful replay")
	}

	h.mustQueueLen(t, 0)
	if !hasMessage(h.notifier.Messages(), "All 2 changes synced!") {
		t.Errorf("missing all-synced notification, got %+v", h.notifier.Messages())
	}
	if h.engine.Status().LastSync == nil {
		t.Error("drain must record a sync time")
	}
}

func TestDrainPreservesFIFOAcrossCollections(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if _, err := h.engine.Create(ctx, types.CollectionCustomers, map[string]any{"name": "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Create(ctx, types.CollectionOrders, map[string]any{"garment": "second"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Create(ctx, types.CollectionTasks, map[string]any{"title": "third"}); err != nil {
		t.Fatal(err)
	}

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	wantOrder := []string{types.CollectionCustomers, types.CollectionOrders, types.CollectionTasks}
	creates := h.remote.callsOf("create")
	if len(creates) != len(wantOrder) {
		t.Fatalf("remote creates = %d, want %d", len(creates), len(wantOrder))
	}
	for i, want := range wantOrder {
		if creates[i].collection != want {
			t.Errorf("replay[%d] hit %s, want %s", i, creates[i].collection, want)
		}
	}
}

// A Conflict on replay means the create already landed on an earlier,
// interrupted drain. Replaying again must treat it as done, not retry
// forever.
func TestDrainConflictOnCreateIsIdempotentSuccess(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if _, err := h.engine.Create(ctx, types.CollectionCustomers, map[string]any{"name": "dup"}); err != nil {
		t.Fatal(err)
	}
	h.remote.failWith("create", types.CollectionCustomers, remote.ErrConflict)

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	h.mustQueueLen(t, 0)
	if !hasMessage(h.notifier.Messages(), "All 1 changes synced!") {
		t.Errorf("conflict replay must count as synced, got %+v", h.notifier.Messages())
	}
}

// When a create fails, its follow-up operations must stay queued behind
// it so a later drain still replays them in order.
func TestDrainFailedCreateBlocksDependents(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rec, err := h.engine.Create(ctx, types.CollectionCustomers, map[string]any{"name": "blocked"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Update(ctx, types.CollectionCustomers, rec.ID, map[string]any{"name": "still blocked"}); err != nil {
		t.Fatal(err)
	}
	h.remote.failWith("create", types.CollectionCustomers, remote.ErrServer)

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// Neither op replayed: the create failed, the update waited.
	if got := len(h.remote.callsOf("update")); got != 0 {
		t.Errorf("update replayed %d times behind a failed create, want 0", got)
	}
	h.mustQueueLen(t, 2)
	ops, _ := h.queue.Snapshot()
	if ops[0].Kind != types.OpCreate || ops[1].Kind != types.OpUpdate {
		t.Errorf("queue order after drain = %s, %s; want create, update", ops[0].Kind, ops[1].Kind)
	}
	if !hasMessage(h.notifier.Messages(), "Synced 0/2 changes") {
		t.Errorf("missing partial-sync notification, got %+v", h.notifier.Messages())
	}

	// Second drain with a healthy remote finishes the job.
	h.notifier.Reset()
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	h.mustQueueLen(t, 0)
	if !hasMessage(h.notifier.Messages(), "All 2 changes synced!") {
		t.Errorf("missing all-synced notification, got %+v", h.notifier.Messages())
	}
}

func TestDrainPartialFailureKeepsOnlyFailedOps(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if _, err := h.engine.Create(ctx, types.CollectionCustomers, map[string]any{"name": "ok"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Create(ctx, types.CollectionOrders, map[string]any{"garment": "doomed"}); err != nil {
		t.Fatal(err)
	}
	h.remote.failWith("create", types.CollectionOrders, remote.ErrNetwork)

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	h.mustQueueLen(t, 1)
	ops, _ := h.queue.Snapshot()
	if ops[0].Collection != types.CollectionOrders {
		t.Errorf("surviving op collection = %s, want orders", ops[0].Collection)
	}
	if !hasMessage(h.notifier.Messages(), "Synced 1/2 changes") {
		t.Errorf("missing partial-sync notification, got %+v", h.notifier.Messages())
	}
}

// NotFound on a queued update or delete means the record is gone on the
// remote side; the operation is moot and must leave the queue.
func TestDrainNotFoundOnUpdateAndDeleteIsMoot(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	seedConfirmed(t, h, types.CollectionCustomers, "srv-gone", map[string]any{"name": "x"})
	seedConfirmed(t, h, types.CollectionOrders, "srv-also-gone", map[string]any{"garment": "y"})

	if _, err := h.engine.Update(ctx, types.CollectionCustomers, "srv-gone", map[string]any{"name": "z"}); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.Delete(ctx, types.CollectionOrders, "srv-also-gone"); err != nil {
		t.Fatal(err)
	}
	h.remote.failWith("update", types.CollectionCustomers, remote.ErrNotFound)
	h.remote.failWith("delete", types.CollectionOrders, remote.ErrNotFound)

	h.checker.online = true
	if err := h.engine.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	h.mustQueueLen(t, 0)
}

func TestDrainSingleFlight(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "x"}); err != nil {
		t.Fatal(err)
	}

	h.engine.draining.Store(true)
	if err := h.engine.DrainQueue(context.Background()); err != nil {
		t.Fatalf("concurrent drain: %v", err)
	}
	if len(h.remote.callsOf("create")) != 1 {
		// The only create call is the one from the online Create above.
		t.Error("a second drain ran while one was in progress")
	}
	h.engine.draining.Store(false)
}

func TestDrainOfflineNoOp(t *testing.T) {
	h := newHarness(t, false)
	if _, err := h.engine.Create(context.Background(), types.CollectionTasks, map[string]any{"title": "x"}); err != nil {
		t.Fatal(err)
	}

	if err := h.engine.DrainQueue(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	h.mustQueueLen(t, 1)
	if len(h.remote.calls) != 0 {
		t.Error("offline drain must not touch the remote store")
	}
}

func TestDrainEmptyQueueSilent(t *testing.T) {
	h := newHarness(t, true)
	if err := h.engine.DrainQueue(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(h.notifier.Messages()) != 0 {
		t.Errorf("empty drain must be silent, got %+v", h.notifier.Messages())
	}
}

func TestOnReconnectDrains(t *testing.T) {
	h := newHarness(t, false)
	if _, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "x"}); err != nil {
		t.Fatal(err)
	}

	h.checker.online = true
	h.engine.OnReconnect(context.Background())

	h.mustQueueLen(t, 0)
	msgs := h.notifier.Messages()
	if !hasMessage(msgs, "Back online - syncing data...") {
		t.Errorf("missing reconnect notification, got %+v", msgs)
	}
	if !hasMessage(msgs, "All 1 changes synced!") {
		t.Errorf("missing synced notification, got %+v", msgs)
	}
}
