// Package retry runs an operation with exponential backoff until it succeeds,
// fails permanently or its context ends.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config defines the backoff schedule. Attempt n (counting from 1) waits
// InitialBackoff * 2^(n-2) before running, capped at MaxBackoff when set.
type Config struct {
	// MaxAttempts bounds the number of calls. Must be greater than 0.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ShouldRetryFunc reports whether err is transient. A nil ShouldRetryFunc
// retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it returns a nil error, shouldRetry rejects the error,
// the attempts are exhausted or ctx is done. It returns the value of the
// successful call.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error), shouldRetry ShouldRetryFunc) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := time.NewTimer(Backoff(cfg, attempt))
			select {
			case <-ctx.Done():
				wait.Stop()
				return zero, ctx.Err()
			case <-wait.C:
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Backoff returns the wait before the given attempt. The first attempt
// does not wait.
func Backoff(cfg Config, attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := cfg.InitialBackoff
	for i := 2; i < attempt; i++ {
		backoff *= 2
		if cfg.MaxBackoff > 0 && backoff >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return backoff
}
