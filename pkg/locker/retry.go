package locker

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy bounds how infrastructure-engine failures are retried.
type RetryPolicy struct {
	MaxAttempts   int           // total attempts, including the first
	InitialDelay  time.Duration // delay before the second attempt
	BackoffFactor float64       // multiplier per subsequent attempt
}

// DefaultRetryPolicy matches the documented engine behavior: one call plus
// two retries, 500ms doubling.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	InitialDelay:  500 * time.Millisecond,
	BackoffFactor: 2.0,
}

// Delay computes the sleep before the given attempt (1-based).
// Attempt 1 has no delay; attempt 2 waits InitialDelay; each later attempt
// multiplies by BackoffFactor.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-2)))
}

// Do runs fn up to MaxAttempts times, sleeping Delay(n) before each retry.
// Retry is applied uniformly to all failures except context cancellation.
// The last error is returned after the budget is exhausted.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return lastErr
}
