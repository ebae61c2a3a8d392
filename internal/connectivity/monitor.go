// Package connectivity tracks whether the remote backend is reachable
// and publishes online/offline transitions to interested parties.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Checker answers the "is the network reachable" question. The sync
// engine gates every remote attempt on it.
type Checker interface {
	Online() bool
}

// Prober performs a single reachability check. The remote client's
// Health method satisfies this.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor polls the backend and fires registered callbacks on state
// transitions. It starts in the offline state until the first successful
// probe; callers that know better can force the state with SetOnline.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu        sync.RWMutex
	online    bool
	onOnline  []func()
	onOffline []func()
}

// NewMonitor creates a monitor probing at the given interval.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
	}
}

// Online reports the last observed reachability state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnOnline registers a callback fired on every offline→online transition.
// Callbacks run synchronously on the transition path and must be quick;
// anything slow should hand off to its own goroutine.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback fired on every online→offline transition.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// SetOnline forces the state, firing transition callbacks if it changed.
// Used by tests and by hosts that receive platform connectivity events.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var callbacks []func()
	if changed {
		if online {
			callbacks = append(callbacks, m.onOnline...)
		} else {
			callbacks = append(callbacks, m.onOffline...)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	slog.Info("connectivity changed",
		"component", "connectivity",
		"online", online,
	)
	for _, fn := range callbacks {
		fn()
	}
}

// Run starts the probe loop. Blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "connectivity",
		"worker", "monitor",
		"action", "worker_started",
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Probe immediately on start, then on each tick.
	m.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "connectivity",
				"worker", "monitor",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := m.prober.Health(probeCtx)
	if ctx.Err() != nil {
		return // shutting down, don't flap the state
	}
	m.SetOnline(err == nil)
}
