package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAICompleter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompleter("test-key", "gpt-4o-mini", srv.URL)
}

func TestOpenAIComplete_ValidResponse(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.MaxTokens != defaultMaxTokens {
			t.Errorf("expected max tokens %d, got %d", defaultMaxTokens, req.MaxTokens)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Two new ISOs."}}},
		})
	})

	got, err := c.Complete(context.Background(), "summarise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Two new ISOs." {
		t.Errorf("unexpected completion %q", got)
	}
}

func TestOpenAIComplete_EmptyChoicesResponse(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	})

	_, err := c.Complete(context.Background(), "summarise")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got: %v", err)
	}
}

func TestOpenAIComplete_RateLimit(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := c.Complete(context.Background(), "summarise")
	if !errors.Is(err, ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got: %v", err)
	}
}
