package mvs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/jacklau/mvsdump/internal/retry"
)

const (
	// DefaultBaseURL is the subscription portal serving the catalog API.
	DefaultBaseURL = "https://my.visualstudio.com"

	// DefaultTimeout bounds a single request including the response body.
	// Large product batches take a while to assemble server side.
	DefaultTimeout = 2 * time.Minute

	cookieName   = "UserAuthentication"
	userAgent    = "ELinks (textmode)"
	acceptHeader = "application/json; api-version=1.0"
)

// Client talks to the vendor catalog API with a session token.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Policy
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxAttempts sets how many times a timed out request is tried.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.retry.MaxAttempts = n }
}

// WithRetryDelay sets the wait before the first retry. Later waits double.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retry.BaseDelay = d }
}

// WithClock overrides the time source used for the token expiry check.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given session token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one API request and decodes the JSON response into out.
// Timeouts are retried; every other failure is returned as is.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	policy := c.retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("request timed out, retrying", "endpoint", path, "attempt", attempt, "wait", wait, "error", err)
	}
	return policy.Do(ctx, func(ctx context.Context) error {
		err := c.send(ctx, method, path, query, payload, out)
		if err != nil && !isTimeout(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: c.token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(path, resp); err != nil {
		return err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// isTimeout reports whether err is a transport or body-read timeout.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decodeNumbers unmarshals data keeping numbers as json.Number.
func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
