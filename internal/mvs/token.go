package mvs

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the exp claim of a session token. The signature is not
// verified; the server does that on every request.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

// ensureValid fails with ErrCredentialExpired when the token is unreadable or
// its expiry is not in the future.
func (c *Client) ensureValid() error {
	exp, err := TokenExpiry(c.token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}
	if !exp.After(c.now()) {
		return fmt.Errorf("%w: token expired at %s", ErrCredentialExpired, exp.Format(time.RFC3339))
	}
	return nil
}

// Validate reports whether the client's token is still usable, without a
// network round trip.
func (c *Client) Validate() error {
	return c.ensureValid()
}
