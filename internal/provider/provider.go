package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for provider operations.
var (
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrTimeout         = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// defaultMaxTokens bounds a completion. Release summaries are a paragraph.
const defaultMaxTokens = 512

// Completer generates text completions from a prompt.
type Completer interface {
	// Complete returns a text completion for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterConfig holds configuration for creating a Completer. URL overrides
// the API endpoint for openai and anthropic and is the server address for
// ollama.
type CompleterConfig struct {
	Type   string
	Model  string
	APIKey string
	URL    string
}

// NewCompleter builds the Completer named by cfg.Type.
func NewCompleter(cfg CompleterConfig) (Completer, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAICompleter(cfg.APIKey, cfg.Model, cfg.URL), nil
	case "anthropic":
		return NewAnthropicCompleter(cfg.APIKey, cfg.Model, cfg.URL), nil
	case "ollama":
		return NewOllamaCompleter(cfg.URL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown completer type %q", cfg.Type)
	}
}

// statusError maps throttling and timeout statuses to the sentinel errors.
// It returns nil for any other status.
func statusError(status int, err error) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	return nil
}
