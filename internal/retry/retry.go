package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is used when a Policy leaves MaxAttempts unset.
	DefaultMaxAttempts = 3

	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second

	// jitterFraction is the largest share of a delay added as jitter.
	jitterFraction = 0.25
)

// Policy says how often and how patiently an operation is retried. The zero
// value makes DefaultMaxAttempts attempts, waiting 1s, 2s, 4s... (capped at
// 10s, plus up to 25% jitter) between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry, if set, is called after a failed attempt (counted from 1) and
	// before waiting wait for the next one.
	OnRetry func(attempt int, err error, wait time.Duration)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do stops at once and returns
// the original err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, runs out of
// attempts or ctx is done. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// delay returns the wait after the given failed attempt.
func (p Policy) delay(attempt int) time.Duration {
	base, ceiling := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	if ceiling <= 0 {
		ceiling = defaultMaxDelay
	}

	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	d = min(d, ceiling)
	return d + time.Duration(float64(d)*jitterFraction*rand.Float64())
}
