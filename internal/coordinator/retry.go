package coordinator

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls the coordinator's per-worker retry/backoff.
type RetryPolicy struct {
	MaxRetries   int // additional attempts beyond the first
	BackoffBase  float64
}

// DefaultRetryPolicy matches MAX_RETRIES=3, RETRY_BACKOFF_BASE_SECONDS=2.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffBase: 2}
}

// backoff returns base^attempt seconds for the given zero-indexed retry
// attempt (attempt 0 -> base^0 = 1s, attempt 1 -> base^1 = 2s, ...).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	seconds := math.Pow(p.BackoffBase, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// sleep waits out one backoff interval, or returns early if ctx is
// cancelled.
func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.backoff(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
