// Package retry re-runs operations that fail transiently, waiting an
// exponentially growing backoff between attempts.
//
// netwatch wraps connection table reads with it: on Linux the table is
// assembled from /proc while processes come and go, so a read can fail once
// and succeed immediately after.
//
//	err := retry.Do(ctx, retry.Config{MaxRetries: 3, InitialBackoff: 50 * time.Millisecond},
//	    fetch, netconn.IsTransient)
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config controls how often and how patiently Do retries.
type Config struct {
	// MaxRetries is the total number of attempts, including the first.
	MaxRetries int

	// InitialBackoff is the wait before the second attempt. Each further
	// wait doubles it.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero disables the cap.
	MaxBackoff time.Duration

	// Jitter in [0, 1] stretches later waits by up to that fraction.
	Jitter float64
}

// ShouldRetryFunc decides whether err is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it returns nil, shouldRetry rejects its error, the
// attempts run out, or ctx is done. Exhaustion wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(calculateBackoff(cfg, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// calculateBackoff returns InitialBackoff * 2^(attempt-1), capped at
// MaxBackoff, plus jitter growing linearly with attempt.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	backoff := cfg.InitialBackoff << (attempt - 1)
	if backoff < 0 || (cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff) {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 && cfg.MaxRetries > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}

	return backoff
}
