package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for remote calls. The sync engine branches on these with
// errors.Is; everything it does not special-case routes to the generic
// queue-and-notify path.
var (
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrNotFound     = errors.New("remote: not found")
	ErrConflict     = errors.New("remote: conflict")
	ErrServer       = errors.New("remote: server error")
	ErrNetwork      = errors.New("remote: network error")
)

// statusError maps an HTTP response status to the error taxonomy.
func statusError(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d): %s", ErrUnauthorized, status, body)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w (status %d): %s", ErrNotFound, status, body)
	case status == http.StatusConflict:
		return fmt.Errorf("%w (status %d): %s", ErrConflict, status, body)
	case status >= 500:
		return fmt.Errorf("%w (status %d): %s", ErrServer, status, body)
	default:
		return fmt.Errorf("remote: unexpected status %d: %s", status, body)
	}
}

// networkError wraps a transport failure so callers can match ErrNetwork.
func networkError(err error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
