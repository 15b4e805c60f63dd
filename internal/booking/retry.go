package booking

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"
)

const jitterPercent = 30 // ±30% jitter

// Policy bounds retries on transient booking API failures.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the first retry, doubled each attempt
	MaxDelay    time.Duration // backoff cap
}

// DefaultPolicy retries twice with a short backoff, keeping worst-case turn
// latency conversational.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Do runs fn until it succeeds, fails terminally, or attempts run out.
// Only transient errors are retried; the last error is returned on
// exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt - 1)
			log.Printf("booking: retrying (%d/%d) in %s: %v", attempt, attempts-1, delay.Round(time.Millisecond), err)
			if serr := sleepWithContext(ctx, delay); serr != nil {
				return serr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}

// IsTransient reports whether an error is worth retrying. Context
// cancellation is never retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindTransient
	}
	return false
}

// delay returns the backoff for retry n (0-indexed) with jitter.
func (p Policy) delay(n int) time.Duration {
	delay := p.BaseDelay
	for range n {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay <= 0 {
		return 0
	}
	// rand.IntN rejects 0, so skip jitter when the span rounds away.
	span := int(delay) * jitterPercent * 2 / 100
	if span <= 0 {
		return delay
	}
	jitter := time.Duration(rand.IntN(span)) - time.Duration(int(delay)*jitterPercent/100)
	return delay + jitter
}

// sleepWithContext sleeps for d, but returns early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
