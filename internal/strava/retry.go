package strava

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a rate-limited or failing request is retried
// and how long to wait in between. Sleep is also used for the delay between
// list pages, so tests can swap in a recorder.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 1s, 2s, 4s, ... between attempts
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff,
		Sleep:       SleepContext,
	}
}

// ExponentialBackoff returns 2^attempt seconds, attempt being the 0-based
// index of the attempt that just failed
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}
