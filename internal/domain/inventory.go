package domain

import (
	"context"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// DefaultMinStock applies when an item is added without its own
// threshold.
const DefaultMinStock = 5.0

// Inventory manages fabric and supply stock levels.
type Inventory struct {
	sync Syncer
}

func NewInventory(sync Syncer) *Inventory {
	return &Inventory{sync: sync}
}

// Add registers a stock item. Quantity may be fractional (meters of
// fabric). A non-positive minStock falls back to the default threshold.
func (i *Inventory) Add(ctx context.Context, name, category, unit string, quantity, minStock float64) (types.Record, error) {
	if name == "" {
		return types.Record{}, errRequired("name")
	}
	if quantity < 0 {
		return types.Record{}, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if minStock <= 0 {
		minStock = DefaultMinStock
	}
	return i.sync.Create(ctx, types.CollectionInventory, map[string]any{
		"name":     name,
		"category": category,
		"unit":     unit,
		"quantity": quantity,
		"minStock": minStock,
	})
}

// GroupByCategory buckets items by their category. Uncategorized items
// land under the empty key.
func (i *Inventory) GroupByCategory(ctx context.Context) (map[string][]types.Record, error) {
	records, err := i.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]types.Record)
	for _, rec := range records {
		category := rec.StringField("category")
		groups[category] = append(groups[category], rec)
	}
	return groups, nil
}

// AdjustStock changes an item's quantity by delta, clamping at zero so
// stock can never go negative.
func (i *Inventory) AdjustStock(ctx context.Context, id string, delta float64) (types.Record, error) {
	records, err := i.List(ctx)
	if err != nil {
		return types.Record{}, err
	}
	for _, rec := range records {
		if rec.ID != id {
			continue
		}
		quantity := rec.FloatField("quantity") + delta
		if quantity < 0 {
			quantity = 0
		}
		return i.sync.Update(ctx, types.CollectionInventory, id, map[string]any{"quantity": quantity})
	}
	return types.Record{}, &ValidationError{Field: "id", Reason: "unknown item " + id}
}

func (i *Inventory) Update(ctx context.Context, id string, updates map[string]any) (types.Record, error) {
	return i.sync.Update(ctx, types.CollectionInventory, id, updates)
}

func (i *Inventory) Remove(ctx context.Context, id string) error {
	return i.sync.Delete(ctx, types.CollectionInventory, id)
}

func (i *Inventory) List(ctx context.Context) ([]types.Record, error) {
	return i.sync.Fetch(ctx, types.CollectionInventory)
}

// LowStock returns items at or below their restock threshold.
func (i *Inventory) LowStock(ctx context.Context) ([]types.Record, error) {
	records, err := i.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]types.Record, 0, len(records))
	for _, rec := range records {
		min := rec.FloatField("minStock")
		if min <= 0 {
			min = DefaultMinStock
		}
		if rec.FloatField("quantity") <= min {
			low = append(low, rec)
		}
	}
	return low, nil
}
