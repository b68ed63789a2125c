package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCommandProviderReadsLastLine(t *testing.T) {
	p := NewCommandProvider([]string{"sh", "-c", `echo "signing in as $MVS_EMAIL"; echo "tok-$MVS_PASSWORD"; echo`}, 0)

	token, err := p.GetToken(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "tok-hunter2" {
		t.Errorf("expected %q, got %q", "tok-hunter2", token)
	}
	if p.Timeout != DefaultHelperTimeout {
		t.Errorf("expected default timeout, got %v", p.Timeout)
	}
}

func TestCommandProviderFailure(t *testing.T) {
	p := NewCommandProvider([]string{"sh", "-c", "echo 'bad password' >&2; exit 3"}, time.Second)

	_, err := p.GetToken(context.Background(), "a", "b")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad password") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestCommandProviderEmptyOutput(t *testing.T) {
	p := NewCommandProvider([]string{"sh", "-c", "true"}, time.Second)

	_, err := p.GetToken(context.Background(), "a", "b")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestCommandProviderNoCommand(t *testing.T) {
	_, err := NewCommandProvider(nil, 0).GetToken(context.Background(), "a", "b")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestCommandProviderTimeout(t *testing.T) {
	p := NewCommandProvider([]string{"sleep", "5"}, 50*time.Millisecond)

	start := time.Now()
	_, err := p.GetToken(context.Background(), "a", "b")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("helper was not killed at the timeout")
	}
}
