// Package session manages the authenticated user: login, signup, logout,
// and the cached identity the sync engine stamps onto every record.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperengineering/stitchbook/internal/localstore"
	"github.com/hyperengineering/stitchbook/internal/remote"
	"github.com/hyperengineering/stitchbook/internal/types"
)

// ErrNoSession is returned when no user is logged in.
var ErrNoSession = errors.New("session: not logged in")

// Manager holds the current user and persists it locally so the app can
// start offline with the last known identity.
type Manager struct {
	account remote.Account
	store   *localstore.Store

	mu   sync.RWMutex
	user *types.User
}

// NewManager creates a Manager and restores any persisted identity from
// the local store.
func NewManager(account remote.Account, store *localstore.Store) *Manager {
	m := &Manager{
		account: account,
		store:   store,
	}
	m.restore()
	return m
}

// restore loads the cached user so offline starts still know who owns
// the local data. A corrupt entry is dropped, not fatal.
func (m *Manager) restore() {
	raw, ok, err := m.store.Get(localstore.KeySessionUser)
	if err != nil || !ok {
		return
	}
	var user types.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		slog.Warn("dropping corrupt session cache",
			"component", "session",
			"error", err,
		)
		if err := m.store.Delete(localstore.KeySessionUser); err != nil {
			slog.Error("failed to clear corrupt session cache",
				"component", "session",
				"error", err,
			)
		}
		return
	}
	m.user = &user
}

// Login authenticates with email and password and caches the resulting
// identity locally.
func (m *Manager) Login(ctx context.Context, email, password string) (*types.User, error) {
	if err := m.account.CreateEmailSession(ctx, email, password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	acct, err := m.account.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	user := &types.User{
		ID:    acct.ID,
		Name:  acct.Name,
		Email: acct.Email,
	}
	m.setUser(user)
	slog.Info("logged in",
		"component", "session",
		"user_id", user.ID,
	)
	return user, nil
}

// Signup registers a new account, then logs straight in.
func (m *Manager) Signup(ctx context.Context, email, password, name string) (*types.User, error) {
	if _, err := m.account.CreateAccount(ctx, email, password, name); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return m.Login(ctx, email, password)
}

// Logout ends the remote session and wipes all local data, collections
// and queue included. A remote logout failure still clears local state:
// the user asked to leave this device.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.account.DeleteSession(ctx); err != nil {
		slog.Warn("remote logout failed, clearing local state anyway",
			"component", "session",
			"error", err,
		)
	}

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	slog.Info("logged out", "component", "session")
	return nil
}

// Refresh re-validates the cached session against the backend. An
// Unauthorized answer means the session expired; the cached identity is
// dropped so callers fall back to the login flow.
func (m *Manager) Refresh(ctx context.Context) (*types.User, error) {
	acct, err := m.account.Me(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			m.mu.Lock()
			m.user = nil
			m.mu.Unlock()
			if derr := m.store.Delete(localstore.KeySessionUser); derr != nil {
				slog.Error("failed to drop expired session cache",
					"component", "session",
					"error", derr,
				)
			}
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	user := &types.User{
		ID:    acct.ID,
		Name:  acct.Name,
		Email: acct.Email,
	}
	m.setUser(user)
	return user, nil
}

// Current returns the logged-in user, or ErrNoSession.
func (m *Manager) Current() (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, ErrNoSession
	}
	u := *m.user
	return &u, nil
}

// UserID implements the provider consumed by the sync engine. Empty when
// nobody is logged in.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m *Manager) setUser(user *types.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		slog.Error("failed to encode session cache",
			"component", "session",
			"error", err,
		)
		return
	}
	if err := m.store.Put(localstore.KeySessionUser, string(raw)); err != nil {
		slog.Error("failed to persist session cache",
			"component", "session",
			"error", err,
		)
	}
}
