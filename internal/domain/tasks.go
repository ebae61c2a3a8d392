package domain

import (
	"context"
	"sort"
	"time"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Tasks manages the workshop to-do list.
type Tasks struct {
	sync Syncer
}

func NewTasks(sync Syncer) *Tasks {
	return &Tasks{sync: sync}
}

// Add creates a task. Priority defaults to medium; an unknown priority
// is rejected. An optional orderID links the task to an order.
func (t *Tasks) Add(ctx context.Context, title, priority, orderID string, due time.Time) (types.Record, error) {
	if title == "" {
		return types.Record{}, errRequired("title")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return types.Record{}, &ValidationError{Field: "priority", Reason: "unknown priority " + priority}
	}

	data := map[string]any{
		"title":     title,
		"priority":  priority,
		"completed": false,
	}
	if orderID != "" {
		data["orderId"] = orderID
	}
	if !due.IsZero() {
		data["dueDate"] = due.UTC().Format(time.RFC3339Nano)
	}
	return t.sync.Create(ctx, types.CollectionTasks, data)
}

// Toggle flips a task's completed state.
func (t *Tasks) Toggle(ctx context.Context, id string, completed bool) (types.Record, error) {
	return t.sync.Update(ctx, types.CollectionTasks, id, map[string]any{"completed": completed})
}

func (t *Tasks) Update(ctx context.Context, id string, updates map[string]any) (types.Record, error) {
	return t.sync.Update(ctx, types.CollectionTasks, id, updates)
}

func (t *Tasks) Remove(ctx context.Context, id string) error {
	return t.sync.Delete(ctx, types.CollectionTasks, id)
}

func (t *Tasks) List(ctx context.Context) ([]types.Record, error) {
	return t.sync.Fetch(ctx, types.CollectionTasks)
}

// Pending returns tasks that are not completed yet.
func (t *Tasks) Pending(ctx context.Context) ([]types.Record, error) {
	records, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if completed, ok := rec.Field("completed").(bool); ok && completed {
			continue
		}
		open = append(open, rec)
	}
	return open, nil
}

// HighPriority returns open high-priority tasks.
func (t *Tasks) HighPriority(ctx context.Context) ([]types.Record, error) {
	open, err := t.Pending(ctx)
	if err != nil {
		return nil, err
	}
	high := make([]types.Record, 0, len(open))
	for _, rec := range open {
		if rec.StringField("priority") == PriorityHigh {
			high = append(high, rec)
		}
	}
	return high, nil
}

// DueToday returns open tasks due on the given calendar day, highest
// priority first.
func (t *Tasks) DueToday(ctx context.Context, now time.Time) ([]types.Record, error) {
	records, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	y, m, d := now.UTC().Date()
	due := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if completed, ok := rec.Field("completed").(bool); ok && completed {
			continue
		}
		dueAt, err := time.Parse(time.RFC3339Nano, rec.StringField("dueDate"))
		if err != nil {
			continue
		}
		dy, dm, dd := dueAt.UTC().Date()
		if dy == y && dm == m && dd == d {
			due = append(due, rec)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return priorityRank(due[i].StringField("priority")) > priorityRank(due[j].StringField("priority"))
	})
	return due, nil
}

func priorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}
