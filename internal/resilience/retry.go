// Package resilience retries calls to remote services on a fixed schedule.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls a retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// Backoff returns the wait after the attempt-th failure (1-based).
	// Nil waits DefaultBackoff between attempts.
	Backoff func(attempt int, err error) time.Duration

	// ShouldRetry decides whether err is worth another attempt. Nil uses
	// IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultBackoff is the wait used when RetryConfig.Backoff is nil.
const DefaultBackoff = 500 * time.Millisecond

// DoVal calls fn until it succeeds, returns an error ShouldRetry rejects, or
// runs out of attempts. The last error is returned unchanged. Context
// cancellation ends the loop without another attempt.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || attempt >= attempts || !shouldRetry(err) {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		wait := DefaultBackoff
		if cfg.Backoff != nil {
			wait = cfg.Backoff(attempt, err)
		}
		if sleep(ctx, wait) != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

// LinearBackoff waits base after the first failure and adds step for each
// later one.
func LinearBackoff(base, step time.Duration) func(int, error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base + step*time.Duration(attempt-1)
	}
}

// RetryLogger returns an OnRetry callback that logs each failed attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
