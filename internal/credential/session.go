package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacklau/mvsdump/internal/mvs"
	"github.com/jacklau/mvsdump/internal/secret"
)

// Session hands out API clients backed by the cached session token,
// acquiring a new token when the cache is empty or expired.
type Session struct {
	secrets  secret.Store
	provider Provider
	opts     []mvs.Option
	logger   *slog.Logger
}

// NewSession creates a session. opts are applied to every client it builds.
func NewSession(secrets secret.Store, provider Provider, logger *slog.Logger, opts ...mvs.Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{secrets: secrets, provider: provider, opts: opts, logger: logger}
}

// Client returns a client for the cached token. A missing or expired token is
// replaced by a fresh one first.
func (s *Session) Client(ctx context.Context) (*mvs.Client, error) {
	token, err := s.secrets.Get(ctx, secret.Cookie)
	switch {
	case errors.Is(err, secret.ErrNotFound):
		s.logger.Info("no cached session token, signing in")
		return s.Refresh(ctx)
	case err != nil:
		return nil, fmt.Errorf("reading cached token: %w", err)
	}

	client := mvs.NewClient(token, s.opts...)
	if err := client.Validate(); err != nil {
		s.logger.Info("cached session token unusable, signing in", "error", err)
		return s.Refresh(ctx)
	}
	return client, nil
}

// Refresh signs in with the stored account credentials, caches the new token
// and returns a client for it.
func (s *Session) Refresh(ctx context.Context) (*mvs.Client, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return mvs.NewClient(token, s.opts...), nil
}

// Token acquires and caches a fresh token without building a client.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("%w: no credential provider configured", ErrAuthentication)
	}

	email, err := s.secrets.Get(ctx, secret.Email)
	if err != nil {
		return "", fmt.Errorf("reading account email: %w", err)
	}
	password, err := s.secrets.Get(ctx, secret.Password)
	if err != nil {
		return "", fmt.Errorf("reading account password: %w", err)
	}

	token, err := s.provider.GetToken(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("acquiring session token: %w", err)
	}
	if err := s.secrets.Set(ctx, secret.Cookie, token); err != nil {
		return "", fmt.Errorf("caching session token: %w", err)
	}
	s.logger.Info("cached new session token")
	return token, nil
}
