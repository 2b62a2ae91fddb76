// Package retry wraps cenkalti/backoff/v4 with the exponential-backoff
// policy and context-cancellation handling snapbase uses for S3 operations
// that fail transiently (eventual-consistency listing, throttling, transient
// network errors). Retry is always a caller concern per spec §7 — nothing in
// pkg/storage or pkg/snapshot retries silently without going through here.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialInterval = 50 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxElapsedTime  = 30 * time.Second
)

// Retryable is implemented by errors that should trigger a retry rather than
// fail the operation immediately. Errors that do not implement it are
// treated as permanent.
type Retryable interface {
	Retryable() bool
}

// Do runs fn with exponential backoff. fn's error is retried only if it
// implements Retryable and reports true; any other error aborts immediately.
func Do(ctx context.Context, log *slog.Logger, operation string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.MaxInterval = maxInterval
	policy.MaxElapsedTime = maxElapsedTime

	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info("operation succeeded after retries", "operation", operation, "attempts", attempt)
			}
			return nil
		}
		if r, ok := err.(Retryable); ok && r.Retryable() {
			log.Warn("retrying after transient error", "operation", operation, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped, backoff.WithContext(policy, ctx))
}
