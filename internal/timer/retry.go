package timer

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures retry behavior for arm calls. A missed arm means the
// alarm silently never fires, so arming is retried; disarm failures are only
// logged by callers and picked up on their next invocation for the same id.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ArmWithRetry arms id at the supplied instant, retrying transient failures
// with exponential backoff.
func ArmWithRetry(ctx context.Context, port Port, id int64, at time.Time, cfg RetryConfig) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * cfg.BackoffFactor)
				if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}

		if lastErr = port.Arm(id, at); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("arm failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
