package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// Order statuses, in workflow order.
const (
	OrderPending    = "pending"
	OrderInProgress = "in_progress"
	OrderReady      = "ready"
	OrderDelivered  = "delivered"
)

// deadlineSoonWindow is how far ahead an order deadline counts as
// "coming up" on the dashboard.
const deadlineSoonWindow = 7 * 24 * time.Hour

// Orders manages garment orders.
type Orders struct {
	sync Syncer
}

func NewOrders(sync Syncer) *Orders {
	return &Orders{sync: sync}
}

// Place creates a new order in the pending state and assigns it the next
// sequential order number.
func (o *Orders) Place(ctx context.Context, customerID, garmentType string, price float64, deadline time.Time, notes string) (types.Record, error) {
	if customerID == "" {
		return types.Record{}, errRequired("customerId")
	}
	if garmentType == "" {
		return types.Record{}, errRequired("garmentType")
	}

	number, err := o.nextNumber(ctx)
	if err != nil {
		return types.Record{}, err
	}

	data := map[string]any{
		"orderNumber": number,
		"customerId":  customerID,
		"garmentType": garmentType,
		"price":       price,
		"status":      OrderPending,
		"notes":       notes,
	}
	if !deadline.IsZero() {
		data["deadline"] = deadline.UTC().Format(time.RFC3339Nano)
	}
	return o.sync.Create(ctx, types.CollectionOrders, data)
}

// nextNumber derives the next ORD-NNNN number from the highest one in
// use. Numbers are display labels, not identity; a collision between two
// offline devices is tolerable and resolved by record ids.
func (o *Orders) nextNumber(ctx context.Context) (string, error) {
	records, err := o.sync.Fetch(ctx, types.CollectionOrders)
	if err != nil {
		return "", err
	}
	highest := 0
	for _, rec := range records {
		var n int
		if _, err := fmt.Sscanf(rec.StringField("orderNumber"), "ORD-%04d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("ORD-%04d", highest+1), nil
}

// SetStatus moves an order through the workflow.
func (o *Orders) SetStatus(ctx context.Context, id, status string) (types.Record, error) {
	switch status {
	case OrderPending, OrderInProgress, OrderReady, OrderDelivered:
	default:
		return types.Record{}, &ValidationError{Field: "status", Reason: "unknown status " + status}
	}
	return o.sync.Update(ctx, types.CollectionOrders, id, map[string]any{"status": status})
}

func (o *Orders) Update(ctx context.Context, id string, updates map[string]any) (types.Record, error) {
	return o.sync.Update(ctx, types.CollectionOrders, id, updates)
}

func (o *Orders) Remove(ctx context.Context, id string) error {
	return o.sync.Delete(ctx, types.CollectionOrders, id)
}

func (o *Orders) List(ctx context.Context) ([]types.Record, error) {
	return o.sync.Fetch(ctx, types.CollectionOrders)
}

// ForCustomer returns the customer's orders, newest first.
func (o *Orders) ForCustomer(ctx context.Context, customerID string) ([]types.Record, error) {
	records, err := o.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.StringField("customerId") == customerID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// Active returns orders that have not been delivered yet.
func (o *Orders) Active(ctx context.Context) ([]types.Record, error) {
	records, err := o.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.StringField("status") != OrderDelivered {
			active = append(active, rec)
		}
	}
	return active, nil
}

// GroupByStatus buckets orders by workflow state.
func (o *Orders) GroupByStatus(ctx context.Context) (map[string][]types.Record, error) {
	records, err := o.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]types.Record)
	for _, rec := range records {
		status := rec.StringField("status")
		groups[status] = append(groups[status], rec)
	}
	return groups, nil
}

// UpcomingDeadlines returns the five undelivered orders due soonest
// within the next seven days.
func (o *Orders) UpcomingDeadlines(ctx context.Context, now time.Time) ([]types.Record, error) {
	records, err := o.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(deadlineSoonWindow)
	upcoming := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.StringField("status") == OrderDelivered {
			continue
		}
		deadline, err := time.Parse(time.RFC3339Nano, rec.StringField("deadline"))
		if err != nil {
			continue
		}
		if deadline.Before(now) || deadline.After(cutoff) {
			continue
		}
		upcoming = append(upcoming, rec)
	}
	sort.Slice(upcoming, func(i, j int) bool {
		di, _ := time.Parse(time.RFC3339Nano, upcoming[i].StringField("deadline"))
		dj, _ := time.Parse(time.RFC3339Nano, upcoming[j].StringField("deadline"))
		return di.Before(dj)
	})
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}
	return upcoming, nil
}
