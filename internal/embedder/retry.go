package embedder

import (
	"context"
	"errors"
	"time"
)

// permanentError marks a failure that another attempt cannot fix, such as a
// rejected API key or an oversized request
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent wraps err so that retryWithBackoff gives up immediately
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Total attempts, including the first
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the retry policy used by remote providers
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryWithBackoff executes fn until it succeeds or attempts run out.
// Cancellation of ctx and permanent errors stop retrying immediately.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay
	attempts := config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < attempts-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
