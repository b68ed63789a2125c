package mvs

import (
	"errors"
	"fmt"
)

// ErrCredentialExpired is returned when the session token is expired,
// unreadable, or rejected by the server. Callers re-authenticate and retry.
var ErrCredentialExpired = errors.New("credential expired")

// RemoteError is a non-2xx response that is not an authentication failure.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
