package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperengineering/stitchbook/internal/localstore"
	"github.com/hyperengineering/stitchbook/internal/notify"
	"github.com/hyperengineering/stitchbook/internal/queue"
	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/types"
)

type toggleChecker struct{ online bool }

func (c *toggleChecker) Online() bool { return c.online }

type staticUser string

func (u staticUser) UserID() string { return string(u) }

// remoteCall records one invocation against the fake client.
type remoteCall struct {
	method     string
	collection string
	documentID string
	data       map[string]any
}

// fakeRemote is a scriptable in-memory remote store. Errors are keyed by
// "method collection" and consumed in FIFO order, so tests can make the
// first create fail and the second succeed.
type fakeRemote struct {
	calls   []remoteCall
	errs    map[string][]error
	nextID  int
	updated map[string]map[string]any
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		errs:    make(map[string][]error),
		updated: make(map[string]map[string]any),
	}
}

func (f *fakeRemote) failWith(method, collection string, errs ...error) {
	key := method + " " + collection
	f.errs[key] = append(f.errs[key], errs...)
}

func (f *fakeRemote) takeErr(method, collection string) error {
	key := method + " " + collection
	if len(f.errs[key]) == 0 {
		return nil
	}
	err := f.errs[key][0]
	f.errs[key] = f.errs[key][1:]
	return err
}

func (f *fakeRemote) CreateDocument(_ context.Context, collection, documentID string, data map[string]any) (*remote.Document, error) {
	f.calls = append(f.calls, remoteCall{"create", collection, documentID, data})
	if err := f.takeErr("create", collection); err != nil {
		return nil, err
	}
	f.nextID++
	now := time.Now().UTC()
	return &remote.Document{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    data,
	}, nil
}

func (f *fakeRemote) UpdateDocument(_ context.Context, collection, documentID string, data map[string]any) (*remote.Document, error) {
	f.calls = append(f.calls, remoteCall{"update", collection, documentID, data})
	if err := f.takeErr("update", collection); err != nil {
		return nil, err
	}
	f.updated[documentID] = data
	return &remote.Document{ID: documentID, UpdatedAt: time.Now().UTC(), Fields: data}, nil
}

func (f *fakeRemote) DeleteDocument(_ context.Context, collection, documentID string) error {
	f.calls = append(f.calls, remoteCall{"delete", collection, documentID, nil})
	return f.takeErr("delete", collection)
}

func (f *fakeRemote) ListDocuments(_ context.Context, collection, userID string) ([]remote.Document, error) {
	f.calls = append(f.calls, remoteCall{"list", collection, userID, nil})
	if err := f.takeErr("list", collection); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return []remote.Document{
		{ID: "srv-a", CreatedAt: now, UpdatedAt: now, Fields: map[string]any{"name": "Remote A", "userId": userID}},
		{ID: "srv-b", CreatedAt: now, UpdatedAt: now, Fields: map[string]any{"name": "Remote B", "userId": userID}},
	}, nil
}

func (f *fakeRemote) Health(context.Context) error { return nil }

func (f *fakeRemote) callsOf(method string) []remoteCall {
	var out []remoteCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	engine   *Engine
	store    *localstore.Store
	queue    *queue.Queue
	remote   *fakeRemote
	checker  *toggleChecker
	notifier *notify.Collector
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	store := localstore.New(localstore.NewMemoryKV())
	t.Cleanup(func() { store.Close() })

	q := queue.New(store)
	client := newFakeRemote()
	checker := &toggleChecker{online: online}
	collector := &notify.Collector{}

	eng := New(store, q, client, checker, collector, staticUser("user-1"))
	eng.conflictRetryDelay = time.Millisecond

	return &harness{
		engine:   eng,
		store:    store,
		queue:    q,
		remote:   client,
		checker:  checker,
		notifier: collector,
	}
}

func (h *harness) mustQueueLen(t *testing.T, want int) {
	t.Helper()
	n, err := h.queue.Len()
	if err != nil {
		t.Fatalf("queue len: %v", err)
	}
	if n != want {
		t.Fatalf("queue length = %d, want %d", n, want)
	}
}

func (h *harness) mustRead(t *testing.T, collection string) []types.Record {
	t.Helper()
	records, err := h.store.Read(collection)
	if err != nil {
		t.Fatalf("read %s: %v", collection, err)
	}
	return records
}

func hasMessage(msgs []notify.Message, text string) bool {
	for _, m := range msgs {
		if m.Text == text {
			return true
		}
	}
	return false
}

func TestCreateOnlineUsesServerID(t *testing.T) {
	h := newHarness(t, true)

	rec, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID != "srv-1" {
		t.Errorf("record id = %q, want server-assigned srv-1", rec.ID)
	}
	if rec.PendingSync {
		t.Error("online create must not be pendingSync")
	}
	if rec.UserID != "user-1" {
		t.Errorf("userId = %q, want user-1", rec.UserID)
	}

	creates := h.remote.callsOf("create")
	if len(creates) != 1 {
		t.Fatalf("remote creates = %d, want 1", len(creates))
	}
	if creates[0].documentID != remote.ServerAssignedID {
		t.Errorf("documentID = %q, want %q", creates[0].documentID, remote.ServerAssignedID)
	}
	if creates[0].data["userId"] != "user-1" {
		t.Errorf("payload userId = %v, want user-1", creates[0].data["userId"])
	}
	if _, ok := creates[0].data["pendingSync"]; ok {
		t.Error("pendingSync must never be sent to the remote store")
	}

	h.mustQueueLen(t, 0)

	stored := h.mustRead(t, types.CollectionCustomers)
	if len(stored) != 1 || stored[0].ID != "srv-1" {
		t.Fatalf("stored = %+v, want one record with id srv-1", stored)
	}
}

func TestCreateOfflineAssignsTempIDAndQueues(t *testing.T) {
	h := newHarness(t, false)

	rec, err := h.engine.Create(context.Background(), types.CollectionOrders, map[string]any{"garment": "suit"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("offline create must assign a temporary id")
	}
	if !rec.PendingSync {
		t.Error("offline create must be pendingSync")
	}
	if len(h.remote.calls) != 0 {
		t.Errorf("offline create made %d remote calls, want 0", len(h.remote.calls))
	}

	h.mustQueueLen(t, 1)
	ops, _ := h.queue.Snapshot()
	if ops[0].Kind != types.OpCreate || ops[0].RecordID != rec.ID {
		t.Errorf("queued op = %+v, want create for %s", ops[0], rec.ID)
	}
	if ops[0].ID == "" || ops[0].EnqueuedAt.IsZero() {
		t.Error("queued op missing id or timestamp")
	}
}

func TestCreateRemoteFailureFallsBackToQueue(t *testing.T) {
	h := newHarness(t, true)
	h.remote.failWith("create", types.CollectionTasks, remote.ErrServer)

	rec, err := h.engine.Create(context.Background(), types.CollectionTasks, map[string]any{"title": "hem trousers"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !rec.PendingSync {
		t.Error("record must be pendingSync after remote failure")
	}
	h.mustQueueLen(t, 1)

	if !hasMessage(h.notifier.Messages(), "Saved locally - will sync when online") {
		t.Errorf("missing saved-locally notification, got %+v", h.notifier.Messages())
	}
}

func TestCreateRetriesOnConflict(t *testing.T) {
	h := newHarness(t, true)
	h.remote.failWith("create", types.CollectionCustomers, remote.ErrConflict)

	rec, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "Grace"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.PendingSync {
		t.Error("create must succeed via retry, not fall back to queue")
	}
	if got := len(h.remote.callsOf("create")); got != 2 {
		t.Errorf("remote creates = %d, want 2 (conflict then success)", got)
	}
	h.mustQueueLen(t, 0)
}

func TestCreateWithoutUserFails(t *testing.T) {
	h := newHarness(t, true)
	h.engine.user = staticUser("")

	_, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "x"})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	h.mustQueueLen(t, 0)
}

func TestCreateStripsEnvelopeFields(t *testing.T) {
	h := newHarness(t, true)

	rec, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{
		"name":        "Ada",
		"id":          "spoofed",
		"userId":      "someone-else",
		"pendingSync": true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Errorf("userId = %q, caller spoofing must be ignored", rec.UserID)
	}
	if _, ok := rec.Fields["id"]; ok {
		t.Error("envelope field id leaked into open fields")
	}
}

func TestUpdateAppliesLocallyFirst(t *testing.T) {
	h := newHarness(t, false)
	seedConfirmed(t, h, types.CollectionCustomers, "srv-9", map[string]any{"name": "Old", "phone": "1"})

	rec, err := h.engine.Update(context.Background(), types.CollectionCustomers, "srv-9", map[string]any{"name": "New"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.StringField("name") != "New" {
		t.Errorf("name = %q, want New", rec.StringField("name"))
	}
	if rec.StringField("phone") != "1" {
		t.Error("untouched fields must survive a partial update")
	}

	stored := h.mustRead(t, types.CollectionCustomers)
	if stored[0].StringField("name") != "New" {
		t.Error("local store not updated")
	}
	h.mustQueueLen(t, 1)
}

func TestUpdateCannotChangeOwner(t *testing.T) {
	h := newHarness(t, true)
	seedConfirmed(t, h, types.CollectionCustomers, "srv-9", map[string]any{"name": "Ada"})

	rec, err := h.engine.Update(context.Background(), types.CollectionCustomers, "srv-9", map[string]any{"userId": "intruder"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Errorf("userId = %q, ownership must be immutable", rec.UserID)
	}
	updates := h.remote.callsOf("update")
	if len(updates) == 1 {
		if _, ok := updates[0].data["userId"]; ok {
			t.Error("userId must be stripped from the remote payload")
		}
	}
}

func TestUpdatePendingRecordQueuesWithoutRemoteCall(t *testing.T) {
	h := newHarness(t, true)
	seedPending(t, h, types.CollectionOrders, "temp-1", map[string]any{"status": "pending"})

	_, err := h.engine.Update(context.Background(), types.CollectionOrders, "temp-1", map[string]any{"status": "ready"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(h.remote.callsOf("update")) != 0 {
		t.Error("update of a pendingSync record must not touch the remote store")
	}
	h.mustQueueLen(t, 1)
}

func TestUpdateMissingRecord(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.engine.Update(context.Background(), types.CollectionCustomers, "ghost", map[string]any{"name": "x"})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestDeleteOnline(t *testing.T) {
	h := newHarness(t, true)
	seedConfirmed(t, h, types.CollectionTasks, "srv-7", map[string]any{"title": "fit check"})

	if err := h.engine.Delete(context.Background(), types.CollectionTasks, "srv-7"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(h.mustRead(t, types.CollectionTasks)) != 0 {
		t.Error("record still present locally")
	}
	if len(h.remote.callsOf("delete")) != 1 {
		t.Error("remote delete not attempted")
	}
	h.mustQueueLen(t, 0)
}

func TestDeletePendingRecordPurgesQueue(t *testing.T) {
	h := newHarness(t, false)

	rec, err := h.engine.Create(context.Background(), types.CollectionCustomers, map[string]any{"name": "Fleeting"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.engine.Update(context.Background(), types.CollectionCustomers, rec.ID, map[string]any{"name": "Renamed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	h.mustQueueLen(t, 2)

	if err := h.engine.Delete(context.Background(), types.CollectionCustomers, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Create, update, and delete all happened offline: nothing about
	// this record may ever reach the remote store.
	h.mustQueueLen(t, 0)
	if len(h.remote.calls) != 0 {
		t.Errorf("remote saw %d calls, want 0", len(h.remote.calls))
	}
}

func TestDeleteOfflineQueues(t *testing.T) {
	h := newHarness(t, false)
	seedConfirmed(t, h, types.CollectionOrders, "srv-3", map[string]any{"garment": "dress"})

	if err := h.engine.Delete(context.Background(), types.CollectionOrders, "srv-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	h.mustQueueLen(t, 1)
	ops, _ := h.queue.Snapshot()
	if ops[0].Kind != types.OpDelete || ops[0].RecordID != "srv-3" {
		t.Errorf("queued op = %+v, want delete of srv-3", ops[0])
	}
}

func TestFetchOfflineServesLocalSubset(t *testing.T) {
	h := newHarness(t, false)
	seedConfirmed(t, h, types.CollectionCustomers, "srv-mine", map[string]any{"name": "Mine"})
	seedOtherUser(t, h, types.CollectionCustomers, "srv-theirs", "user-2", map[string]any{"name": "Theirs"})

	records, err := h.engine.Fetch(context.Background(), types.CollectionCustomers)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || records[0].ID != "srv-mine" {
		t.Fatalf("fetch offline = %+v, want only the current user's record", records)
	}
	if len(h.remote.calls) != 0 {
		t.Error("offline fetch must not touch the remote store")
	}
}

func TestFetchOverwritesButKeepsPendingRecords(t *testing.T) {
	h := newHarness(t, true)
	seedConfirmed(t, h, types.CollectionCustomers, "stale-1", map[string]any{"name": "Stale"})
	seedPending(t, h, types.CollectionCustomers, "temp-1", map[string]any{"name": "Unsynced"})

	records, err := h.engine.Fetch(context.Background(), types.CollectionCustomers)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	ids := make(map[string]bool)
	for _, rec := range records {
		ids[rec.ID] = rec.PendingSync
	}
	if _, ok := ids["srv-a"]; !ok {
		t.Error("remote record srv-a missing after fetch")
	}
	if ids["stale-1"] {
		t.Error("stale confirmed record should have been overwritten")
	}
	if pending, ok := ids["temp-1"]; !ok || !pending {
		t.Error("pendingSync record must survive a fetch overwrite")
	}

	if h.engine.Status().LastSync == nil {
		t.Error("successful fetch must record a sync time")
	}
}

func TestFetchRemoteFailureFallsBack(t *testing.T) {
	h := newHarness(t, true)
	h.remote.failWith("list", types.CollectionCustomers, remote.ErrServer)
	seedConfirmed(t, h, types.CollectionCustomers, "srv-local", map[string]any{"name": "Cached"})

	records, err := h.engine.Fetch(context.Background(), types.CollectionCustomers)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || records[0].ID != "srv-local" {
		t.Fatalf("fallback = %+v, want the cached local record", records)
	}
	if !hasMessage(h.notifier.Messages(), "Could not fetch latest data") {
		t.Errorf("missing fetch-failure notification, got %+v", h.notifier.Messages())
	}
}

func TestSyncNowOffline(t *testing.T) {
	h := newHarness(t, false)
	if err := h.engine.SyncNow(context.Background()); !errors.Is(err, ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if !hasMessage(h.notifier.Messages(), "Cannot sync - you are offline") {
		t.Errorf("missing offline notification, got %+v", h.notifier.Messages())
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, false)
	if _, err := h.engine.Create(context.Background(), types.CollectionTasks, map[string]any{"title": "a"}); err != nil {
		t.Fatal(err)
	}

	status := h.engine.Status()
	if status.PendingOperations != 1 {
		t.Errorf("pending = %d, want 1", status.PendingOperations)
	}
	if status.Online {
		t.Error("status reports online while offline")
	}
	if status.LastSync != nil {
		t.Error("no sync has happened yet")
	}
	if status.DrainInProgress {
		t.Error("no drain is running")
	}
}

// seedConfirmed writes a synced record owned by the test user.
func seedConfirmed(t *testing.T, h *harness, collection, id string, fields map[string]any) {
	t.Helper()
	seedRecord(t, h, collection, id, "user-1", false, fields)
}

// seedPending writes a record still waiting for its first sync.
func seedPending(t *testing.T, h *harness, collection, id string, fields map[string]any) {
	t.Helper()
	seedRecord(t, h, collection, id, "user-1", true, fields)
}

func seedOtherUser(t *testing.T, h *harness, collection, id, userID string, fields map[string]any) {
	t.Helper()
	seedRecord(t, h, collection, id, userID, false, fields)
}

func seedRecord(t *testing.T, h *harness, collection, id, userID string, pending bool, fields map[string]any) {
	t.Helper()
	records, err := h.store.Read(collection)
	if err != nil {
		t.Fatalf("read %s: %v", collection, err)
	}
	now := time.Now().UTC()
	records = append(records, types.Record{
		ID:          id,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
		PendingSync: pending,
		Fields:      fields,
	})
	if err := h.store.Write(collection, records); err != nil {
		t.Fatalf("write %s: %v", collection, err)
	}
}
