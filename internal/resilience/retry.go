package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBackoff is the wait schedule used for retrying requests against
// services that are still warming up (e.g. a semantic layer that returns 503
// while its model loads).
var DefaultBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// RetryConfig configures Retry.
type RetryConfig struct {
	// Backoff is the wait duration before each retry attempt. The number of
	// retries equals len(Backoff); the initial attempt is always made.
	// Nil means DefaultBackoff.
	Backoff []time.Duration

	// Retryable decides whether an error is worth retrying. Nil retries every
	// error.
	Retryable func(error) bool

	// Name identifies the operation in log output.
	Name string
}

// Retry runs fn, retrying per cfg when it fails with a retryable error.
// It respects ctx cancellation while waiting between attempts.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt <= len(backoff); attempt++ {
		if attempt > 0 {
			wait := backoff[attempt-1]
			slog.Warn("retrying after failure",
				"operation", cfg.Name,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, fmt.Errorf("resilience: retry %s: %w", cfg.Name, ctx.Err())
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("resilience: retry %s: attempts exhausted: %w", cfg.Name, lastErr)
}
