package domain

import (
	"context"
	"sort"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// Customers manages the customer book.
type Customers struct {
	sync Syncer
}

func NewCustomers(sync Syncer) *Customers {
	return &Customers{sync: sync}
}

// Add registers a new customer. Name is the only required field.
func (c *Customers) Add(ctx context.Context, name, phone, email, address, notes string) (types.Record, error) {
	if name == "" {
		return types.Record{}, errRequired("name")
	}
	return c.sync.Create(ctx, types.CollectionCustomers, map[string]any{
		"name":    name,
		"phone":   phone,
		"email":   email,
		"address": address,
		"notes":   notes,
	})
}

func (c *Customers) Update(ctx context.Context, id string, updates map[string]any) (types.Record, error) {
	return c.sync.Update(ctx, types.CollectionCustomers, id, updates)
}

func (c *Customers) Remove(ctx context.Context, id string) error {
	return c.sync.Delete(ctx, types.CollectionCustomers, id)
}

func (c *Customers) List(ctx context.Context) ([]types.Record, error) {
	return c.sync.Fetch(ctx, types.CollectionCustomers)
}

// Search matches the query against customer name and phone,
// case-insensitively. An empty query returns everyone.
func (c *Customers) Search(ctx context.Context, query string) ([]types.Record, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return records, nil
	}
	matched := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if containsFold(rec.StringField("name"), query) ||
			containsFold(rec.StringField("email"), query) ||
			containsFold(rec.StringField("phone"), query) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// Count returns the number of customers on file.
func (c *Customers) Count(ctx context.Context) (int, error) {
	records, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Recent returns the five most recently added customers, newest first.
func (c *Customers) Recent(ctx context.Context) ([]types.Record, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > 5 {
		records = records[:5]
	}
	return records, nil
}
