// Package types defines the shared data model for the sync layer:
// records, queued operations, and derived sync status.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection identifiers. Each maps to one remote collection and one
// local storage key.
const (
	CollectionCustomers    = "customers"
	CollectionOrders       = "orders"
	CollectionMeasurements = "measurements"
	CollectionInventory    = "inventory"
	CollectionTasks        = "tasks"
	CollectionMedia        = "media"
)

// Collections returns all known collection names.
func Collections() []string {
	return []string{
		CollectionCustomers,
		CollectionOrders,
		CollectionMeasurements,
		CollectionInventory,
		CollectionTasks,
		CollectionMedia,
	}
}

// Reserved envelope field names. These are owned by the sync layer and
// may not appear in a record's open field set.
const (
	FieldID          = "id"
	FieldUserID      = "userId"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldPendingSync = "pendingSync"
)

// Record is a single domain entity: a fixed envelope plus an open bag of
// domain fields. PendingSync is the explicit sync state. When true, the
// record's ID is a locally assigned temporary id that no remote document
// matches yet.
type Record struct {
	ID          string
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PendingSync bool
	Fields      map[string]any
}

// Field returns the named domain field, or nil if absent.
func (r *Record) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// StringField returns the named domain field as a string, or "" if absent
// or not a string.
func (r *Record) StringField(name string) string {
	s, _ := r.Field(name).(string)
	return s
}

// FloatField returns the named domain field as a float64, or 0 if absent.
// JSON numbers always decode as float64.
func (r *Record) FloatField(name string) float64 {
	f, _ := r.Field(name).(float64)
	return f
}

// SetField sets a domain field, rejecting reserved envelope names.
func (r *Record) SetField(name string, value any) error {
	if isEnvelopeField(name) {
		return fmt.Errorf("field %q is reserved", name)
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
	return nil
}

// Clone returns a deep-enough copy: the envelope plus a fresh field map.
// Field values are shared, which is safe because callers treat them as
// immutable once stored.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

func isEnvelopeField(name string) bool {
	switch name {
	case FieldID, FieldUserID, FieldCreatedAt, FieldUpdatedAt, FieldPendingSync:
		return true
	}
	return false
}

// MarshalJSON flattens the envelope and the open fields into one object.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		if isEnvelopeField(k) {
			continue
		}
		m[k] = v
	}
	m[FieldID] = r.ID
	m[FieldUserID] = r.UserID
	m[FieldCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	m[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	m[FieldPendingSync] = r.PendingSync
	return json.Marshal(m)
}

// UnmarshalJSON splits a flat object back into envelope and open fields.
// Unknown envelope timestamps are left zero rather than failing the whole
// record.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	r.ID, _ = m[FieldID].(string)
	r.UserID, _ = m[FieldUserID].(string)
	r.PendingSync, _ = m[FieldPendingSync].(bool)
	r.CreatedAt = parseTimeField(m[FieldCreatedAt])
	r.UpdatedAt = parseTimeField(m[FieldUpdatedAt])

	r.Fields = make(map[string]any)
	for k, v := range m {
		if isEnvelopeField(k) {
			continue
		}
		r.Fields[k] = v
	}
	return nil
}

func parseTimeField(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// OpKind tags a queued operation variant.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// QueuedOperation is a durable intent to replay one mutation against the
// remote store. Payload carries the full record for a create, the partial
// field set for an update, and nothing for a delete.
type QueuedOperation struct {
	ID         string         `json:"id"`
	Kind       OpKind         `json:"kind"`
	Collection string         `json:"collection"`
	RecordID   string         `json:"recordId"`
	Payload    map[string]any `json:"payload,omitempty"`
	StorageKey string         `json:"storageKey"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// Status is the derived sync state exposed to callers. It is computed on
// demand and never persisted as a whole.
type Status struct {
	PendingOperations int        `json:"pendingOperations"`
	LastSync          *time.Time `json:"lastSync,omitempty"`
	Online            bool       `json:"online"`
	DrainInProgress   bool       `json:"drainInProgress"`
}

// User is the authenticated owner of all records in this client.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
