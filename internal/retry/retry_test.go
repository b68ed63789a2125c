package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var fast = Policy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}

// failing returns an operation that fails n times with err before succeeding.
func failing(n int, err error, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestDoAttempts(t *testing.T) {
	timeout := errors.New("request timed out")

	tests := []struct {
		name      string
		max       int
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{"first try", 3, 0, false, 1},
		{"recovers on last attempt", 3, 2, false, 3},
		{"runs out of attempts", 3, 5, true, 3},
		{"single attempt", 1, 1, true, 1},
		{"zero means default", 0, 10, true, DefaultMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fast
			p.MaxAttempts = tt.max
			var calls int
			err := p.Do(context.Background(), failing(tt.failures, timeout, &calls))
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, timeout) {
				t.Errorf("expected the last attempt's error, got %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDoOnRetry(t *testing.T) {
	p := fast
	p.MaxAttempts = 3
	var attempts []int
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		attempts = append(attempts, attempt)
		if wait < time.Millisecond {
			t.Errorf("attempt %d: wait %v below base delay", attempt, wait)
		}
	}

	var calls int
	p.Do(context.Background(), failing(5, errors.New("slow"), &calls))
	if fmt.Sprint(attempts) != "[1 2]" {
		t.Errorf("OnRetry attempts = %v, want [1 2] (no call after the last attempt)", attempts)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	gone := errors.New("404 not found")
	var calls int
	err := fast.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return fmt.Errorf("fetching products: %w", Permanent(gone))
	})
	if err != gone {
		t.Errorf("expected the unwrapped permanent error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestDoCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := fast.Do(ctx, failing(0, nil, &calls))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDoCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	var calls int
	start := time.Now()
	err := p.Do(ctx, failing(5, errors.New("keep trying"), &calls))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("Do kept waiting after cancellation")
	}
}

func TestDelay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}
	within := func(d, lo time.Duration) bool {
		return d >= lo && d <= lo+time.Duration(float64(lo)*jitterFraction)
	}

	for attempt, want := range map[int]time.Duration{
		1:  100 * time.Millisecond,
		2:  200 * time.Millisecond,
		3:  350 * time.Millisecond,
		40: 350 * time.Millisecond,
	} {
		if d := p.delay(attempt); !within(d, want) {
			t.Errorf("delay(%d) = %v, want %v plus at most 25%%", attempt, d, want)
		}
	}
}

func TestDelayDefaults(t *testing.T) {
	if d := (Policy{}).delay(1); d < time.Second || d > 1250*time.Millisecond {
		t.Errorf("default first delay = %v, want about 1s", d)
	}
}

func TestDelayJitterVaries(t *testing.T) {
	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		seen[fast.delay(2)] = true
	}
	if len(seen) < 2 {
		t.Error("expected jitter to vary the delay")
	}
}
