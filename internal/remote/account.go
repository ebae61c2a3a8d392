package remote

import (
	"context"
	"net/http"
)

// AccountUser is the authenticated identity returned by the backend.
type AccountUser struct {
	ID    string `json:"$id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Account is the authentication surface of the hosted backend.
type Account interface {
	Me(ctx context.Context) (*AccountUser, error)
	CreateAccount(ctx context.Context, email, password, name string) (*AccountUser, error)
	CreateEmailSession(ctx context.Context, email, password string) error
	DeleteSession(ctx context.Context) error
}

// Me returns the user for the current session. Fails with ErrUnauthorized
// when there is no active session.
func (c *HTTPClient) Me(ctx context.Context) (*AccountUser, error) {
	var user AccountUser
	if err := c.do(ctx, http.MethodGet, "/account", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAccount registers a new user. The server assigns the user id.
func (c *HTTPClient) CreateAccount(ctx context.Context, email, password, name string) (*AccountUser, error) {
	body := map[string]any{
		"userId":   ServerAssignedID,
		"email":    email,
		"password": password,
		"name":     name,
	}
	var user AccountUser
	if err := c.do(ctx, http.MethodPost, "/account", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateEmailSession logs in and retains the session secret for
// subsequent requests.
func (c *HTTPClient) CreateEmailSession(ctx context.Context, email, password string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var session struct {
		Secret string `json:"secret"`
	}
	if err := c.do(ctx, http.MethodPost, "/account/sessions/email", body, &session); err != nil {
		return err
	}
	c.session = session.Secret
	return nil
}

// DeleteSession logs out the current session.
func (c *HTTPClient) DeleteSession(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/account/sessions/current", nil, nil)
	c.session = ""
	return err
}
