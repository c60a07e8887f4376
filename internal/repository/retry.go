package repository

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/ozadari/unipop/internal/errors"
)

// RetryConfig defines retry behavior of the backend client decorators.
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of attempts, including the first
	BaseDelay     time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Upper bound for a single delay
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Random jitter fraction to spread retries
}

// DefaultRetryConfig returns default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// IsRetryableError reports whether a failed backend call may succeed when repeated.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return apperrors.IsRetryable(err)
}

// RetryWithBackoff executes operation until it succeeds, fails with a
// non-retryable error, or MaxAttempts is reached. The last error is returned
// unchanged so its classification survives.
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(config.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// calculateDelay returns the backoff delay for the given attempt number.
func (c RetryConfig) calculateDelay(attempt int) time.Duration {
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(factor, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
