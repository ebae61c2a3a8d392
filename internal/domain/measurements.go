package domain

import (
	"context"
	"sort"

	"github.com/hyperengineering/stitchbook/internal/types"
)

// MeasurementFields are the standard tape measurements taken for a
// garment, in centimeters.
var MeasurementFields = []string{
	"chest",
	"waist",
	"hips",
	"shoulder",
	"sleeve",
	"inseam",
	"outseam",
	"neck",
	"thigh",
	"length",
}

// Measurements manages per-customer measurement sets. A customer keeps a
// history of sets; the newest one is current.
type Measurements struct {
	sync Syncer
}

func NewMeasurements(sync Syncer) *Measurements {
	return &Measurements{sync: sync}
}

// Record stores a new measurement set for a customer. Values outside the
// standard field list are kept as free-form extras; negative values are
// rejected.
func (m *Measurements) Record(ctx context.Context, customerID, label string, values map[string]float64) (types.Record, error) {
	if customerID == "" {
		return types.Record{}, errRequired("customerId")
	}
	data := map[string]any{
		"customerId": customerID,
		"label":      label,
	}
	for name, v := range values {
		if v < 0 {
			return types.Record{}, &ValidationError{Field: name, Reason: "must not be negative"}
		}
		data[name] = v
	}
	return m.sync.Create(ctx, types.CollectionMeasurements, data)
}

func (m *Measurements) Update(ctx context.Context, id string, updates map[string]any) (types.Record, error) {
	return m.sync.Update(ctx, types.CollectionMeasurements, id, updates)
}

func (m *Measurements) Remove(ctx context.Context, id string) error {
	return m.sync.Delete(ctx, types.CollectionMeasurements, id)
}

// ForCustomer returns the customer's measurement sets, newest first.
func (m *Measurements) ForCustomer(ctx context.Context, customerID string) ([]types.Record, error) {
	records, err := m.sync.Fetch(ctx, types.CollectionMeasurements)
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

// Current returns the customer's most recent measurement set, or false
// when none exists.
func (m *Measurements) Current(ctx context.Context, customerID string) (types.Record, bool, error) {
	sets, err := m.ForCustomer(ctx, customerID)
	if err != nil {
		return types.Record{}, false, err
	}
	if len(sets) == 0 {
		return types.Record{}, false, nil
	}
	return sets[0], true, nil
}
