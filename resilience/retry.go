package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	Backoff    Backoff
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	// OnRetry is called before sleeping for retry n.
	OnRetry func(n int, err error, delay time.Duration)
}

// DefaultRetryConfig retries three times, waiting 1s, 2s, then 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Backoff:    Backoff{Initial: time.Second, Max: 10 * time.Second, Factor: 2, Jitter: 0.05},
		RetryIf:    DefaultRetryIf,
	}
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retry runs fn until it succeeds, RetryIf rejects the error, retries are
// exhausted or ctx ends. The last error is returned on failure.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if n >= cfg.MaxRetries || !cfg.RetryIf(err) {
			return zero, err
		}

		delay := cfg.Backoff.Delay(n + 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// RetryFunc is Retry for functions without a result.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
