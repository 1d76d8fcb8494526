package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of an operation that can hit SQLite lock
// contention.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy retries three times with 50ms, 100ms backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}

// RetryOnConflict runs fn until it succeeds, fails with a non-conflict
// error, or the policy is exhausted. Delays double after every attempt.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var err error
	for i := 0; i < policy.MaxAttempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == policy.MaxAttempts-1 {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("Database busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
