package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecord_MarshalRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := Record{
		ID:          "01HQZX",
		UserID:      "user-1",
		CreatedAt:   created,
		UpdatedAt:   created,
		PendingSync: true,
		Fields: map[string]any{
			"name":  "Ada",
			"phone": "5551234",
		},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != rec.ID || got.UserID != rec.UserID || !got.PendingSync {
		t.Errorf("envelope mismatch: got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.StringField("name") != "Ada" {
		t.Errorf("name field = %q, want Ada", got.StringField("name"))
	}
}

func TestRecord_MarshalFlattensFields(t *testing.T) {
	rec := Record{ID: "r1", UserID: "u1", Fields: map[string]any{"name": "Ada"}}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal into map: %v", err)
	}
	if _, nested := m["Fields"]; nested {
		t.Error("fields were not flattened into the top-level object")
	}
	if m["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", m["name"])
	}
	if m["id"] != "r1" {
		t.Errorf("id = %v, want r1", m["id"])
	}
}

func TestRecord_SetFieldRejectsEnvelopeNames(t *testing.T) {
	var rec Record
	for _, name := range []string{FieldID, FieldUserID, FieldCreatedAt, FieldUpdatedAt, FieldPendingSync} {
		if err := rec.SetField(name, "x"); err == nil {
			t.Errorf("SetField(%q) succeeded, want error", name)
		}
	}
	if err := rec.SetField("notes", "fine"); err != nil {
		t.Errorf("SetField(notes) error = %v", err)
	}
}

func TestRecord_UnmarshalIgnoresBadTimestamps(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"id":"r1","createdAt":"not-a-time","name":"Ada"}`), &rec)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !rec.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", rec.CreatedAt)
	}
	if rec.StringField("name") != "Ada" {
		t.Error("open fields lost when a timestamp is malformed")
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	rec := Record{ID: "r1", Fields: map[string]any{"name": "Ada"}}
	cp := rec.Clone()
	cp.Fields["name"] = "Grace"

	if rec.StringField("name") != "Ada" {
		t.Error("mutating the clone changed the original")
	}
}

func TestQueuedOperation_JSONOmitsEmptyPayload(t *testing.T) {
	op := QueuedOperation{ID: "op1", Kind: OpDelete, Collection: CollectionOrders, RecordID: "r1"}
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["payload"]; ok {
		t.Error("delete operation serialized an empty payload")
	}
}
