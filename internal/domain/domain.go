// Package domain exposes the business stores of the tailoring shop:
// customers, orders, measurements, inventory, tasks, and media. Each
// store is a thin facade over the sync engine plus the computed views
// the app renders. Persistence and sync semantics live entirely in the
// engine; nothing here talks to the network directly.
package domain

import (
	"context"
	"strings"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// Syncer is the slice of the sync engine the domain stores consume.
type Syncer interface {
	Create(ctx context.Context, collection string, data map[string]any) (types.Record, error)
	Update(ctx context.Context, collection, id string, updates map[string]any) (types.Record, error)
	Delete(ctx context.Context, collection, id string) error
	Fetch(ctx context.Context, collection string) ([]types.Record, error)
}

// ValidationError reports caller input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func errRequired(field string) error {
	return &ValidationError{Field: field, Reason: "required"}
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
