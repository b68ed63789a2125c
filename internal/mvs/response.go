package mvs

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept in a RemoteError.
const maxErrorBody = 512

// checkResponse maps a non-2xx response to an error. Authentication failures
// become ErrCredentialExpired; everything else is a *RemoteError.
func checkResponse(endpoint string, resp *http.Response) error {
	if isSuccess(resp) {
		return nil
	}

	if isAuthError(resp) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: status %d: %w", endpoint, resp.StatusCode, ErrCredentialExpired)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func isSuccess(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}

// isAuthError returns true if the server rejected the session (401 or 403).
func isAuthError(resp *http.Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
}
