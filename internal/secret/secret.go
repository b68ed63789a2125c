package secret

import (
	"context"
	"errors"
)

// Names of the secrets the tool reads and writes.
const (
	Email    = "email"
	Password = "password"
	Cookie   = "cookie"
	// GitHubKey holds the token used to publish releases.
	GitHubKey = "github-key"
)

// ErrNotFound is returned when a secret has never been stored.
var ErrNotFound = errors.New("secret not found")

// Store reads and writes named secrets. Values are trimmed of surrounding
// whitespace on read.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}
