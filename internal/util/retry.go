package util

import (
	"context"
	"errors"
	"time"
)

// Backoff is a retry schedule: Attempts calls in total, the first retry
// after BaseDelay, each later wait doubled and capped at MaxDelay.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	// MaxDelay caps a single wait; 0 means uncapped.
	MaxDelay time.Duration
}

// Delay returns the wait before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	d := b.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if b.MaxDelay > 0 && d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or
// b.Attempts calls have failed; fewer than one attempt means one. fn gets
// the 1-based attempt number. The last error is returned, or ctx.Err() if
// the context ends while waiting.
func Retry(ctx context.Context, b Backoff, fn func(attempt int) error) error {
	attempts := max(1, b.Attempts)
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			return err
		}

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
