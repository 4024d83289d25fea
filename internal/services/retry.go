package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/queueit/backend/internal/store"
)

// RetryPolicy retries operations that failed with a transient store error.
// Domain errors are never retried.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy retries once after one second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 2, Delay: time.Second}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			slog.WarnContext(ctx, "retrying after transient store error",
				slog.String("op", op), slog.Int("attempt", i+1), slog.Any("error", err))
			t := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		err = fn()
		if err == nil || !store.IsTransient(err) {
			return err
		}
	}
	return err
}
