package secret

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// memoryHook answers GET and SET from a map so no server is needed.
type memoryHook struct {
	data map[string]string
}

func (h *memoryHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *memoryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			if cmd.Name() == "get" {
				val, ok := h.data[fmt.Sprint(args[1])]
				if !ok {
					return redis.Nil
				}
				c.SetVal(val)
				return nil
			}
		case *redis.StatusCmd:
			if cmd.Name() == "set" {
				h.data[fmt.Sprint(args[1])] = fmt.Sprint(args[2])
				c.SetVal("OK")
				return nil
			}
		}
		return fmt.Errorf("unexpected command %v", args)
	}
}

func newMemoryRedisStore(t *testing.T, prefix string) (*RedisStore, *memoryHook) {
	t.Helper()
	hook := &memoryHook{data: make(map[string]string)}
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	rdb.AddHook(hook)
	s := NewRedisStoreFromClient(rdb, prefix)
	t.Cleanup(func() { s.Close() })
	return s, hook
}

func TestRedisStoreGetSet(t *testing.T) {
	s, hook := newMemoryRedisStore(t, "test:")
	ctx := context.Background()

	if _, err := s.Get(ctx, Cookie); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Set(ctx, Cookie, " token\n"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := hook.data["test:"+Cookie]; got != " token\n" {
		t.Errorf("expected value stored under prefixed key, got %q", got)
	}

	got, err := s.Get(ctx, Cookie)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "token" {
		t.Errorf("expected %q, got %q", "token", got)
	}
}

func TestRedisStoreGetWrapsErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	rdb.AddHook(failingHook{})
	s := NewRedisStoreFromClient(rdb, "")
	defer s.Close()

	_, err := s.Get(context.Background(), Email)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a read error, got %v", err)
	}
	if err := s.Set(context.Background(), Email, "x"); err == nil {
		t.Fatal("expected a write error")
	}
}

type failingHook struct{}

func (failingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (failingHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(context.Context, redis.Cmder) error { return errors.New("connection refused") }
}

// TestRedisStore_Integration requires a running Redis on localhost.
func TestRedisStore_Integration(t *testing.T) {
	prefix := fmt.Sprintf("mvsdump-test:%d:", time.Now().UnixNano())
	s := NewRedisStore("localhost:6379", "", 0, prefix)
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	if _, err := s.Get(ctx, Cookie); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Set(ctx, Cookie, "token\n"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	defer s.client.Del(ctx, prefix+Cookie)

	got, err := s.Get(ctx, Cookie)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "token" {
		t.Errorf("expected %q, got %q", "token", got)
	}
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	s := NewRedisStore("localhost:0", "", 0, "")
	defer s.Close()
	if s.prefix != DefaultRedisPrefix {
		t.Errorf("expected default prefix, got %q", s.prefix)
	}
}
