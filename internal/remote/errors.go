package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes reported by the client. Callers match them with errors.Is.
var (
	ErrAuthExpired  = errors.New("authentication expired")
	ErrNotFound     = errors.New("panel not found")
	ErrTransient    = errors.New("remote store unavailable")
	ErrInvalidPanel = errors.New("invalid panel payload")
)

// statusError maps a non-2xx response onto a failure class.
func statusError(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %d %s", ErrAuthExpired, code, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %d %s", ErrTransient, code, msg)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidPanel, msg)
	}
	return fmt.Errorf("remote: unexpected status %d: %s", code, msg)
}
