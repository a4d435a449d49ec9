package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/grokify/seekio"
)

// RetryConfig configures retry behavior for failed fetcher calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// 0 means no retries (fail on first error).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default is 1 second.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	// Default is 30 seconds.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	// Default is 2.0 (exponential backoff).
	Multiplier float64

	// Jitter adds randomness to delays to prevent thundering herd.
	// 0.1 means +/- 10% random variation. Default is 0.1.
	Jitter float64

	// RetryableErrors is a function that determines if an error should be retried.
	// If nil, every error except ErrNotSupported, ErrNotFound,
	// ErrPermissionDenied and context errors is retried.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns retry config with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// WithRetry wraps f so that every call is retried with exponential backoff.
// All fetcher operations are idempotent, so writes are retried as well.
func WithRetry(f Fetcher, config RetryConfig) Fetcher {
	return &retryFetcher{f: f, config: config}
}

type retryFetcher struct {
	f      Fetcher
	config RetryConfig
}

func (r *retryFetcher) Size(ctx context.Context) (int64, error) {
	var size int64
	err := retryOperation(ctx, r.config, func() error {
		var err error
		size, err = r.f.Size(ctx)
		return err
	})
	return size, err
}

func (r *retryFetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	var data []byte
	err := retryOperation(ctx, r.config, func() error {
		var err error
		data, err = r.f.FetchRange(ctx, off, n)
		return err
	})
	return data, err
}

func (r *retryFetcher) PutRange(ctx context.Context, off int64, p []byte) error {
	return retryOperation(ctx, r.config, func() error {
		return r.f.PutRange(ctx, off, p)
	})
}

func (r *retryFetcher) Truncate(ctx context.Context, size int64) error {
	return retryOperation(ctx, r.config, func() error {
		return r.f.Truncate(ctx, size)
	})
}

func (r *retryFetcher) Replace(ctx context.Context, data []byte) error {
	return retryOperation(ctx, r.config, func() error {
		return r.f.Replace(ctx, data)
	})
}

func (r *retryFetcher) Features() Features {
	return r.f.Features()
}

func (r *retryFetcher) Close() error {
	return closeFetcher(r.f)
}

// retryOperation retries an operation with exponential backoff.
func retryOperation(ctx context.Context, config RetryConfig, op func() error) error {
	if config.MaxRetries <= 0 {
		return op()
	}

	// Apply defaults
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = isRetryable
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Don't delay after the last attempt
		if attempt == config.MaxRetries {
			break
		}

		// math/rand is enough for timing jitter.
		actualDelay := delay
		if config.Jitter > 0 {
			jitter := float64(delay) * config.Jitter
			actualDelay = delay + time.Duration((rand.Float64()*2-1)*jitter) //nolint:gosec // G404: math/rand is appropriate for timing jitter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(actualDelay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return &RetryError{
		Attempts: config.MaxRetries + 1,
		LastErr:  lastErr,
	}
}

// isRetryable rejects errors that another attempt cannot fix.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, seekio.ErrNotSupported),
		errors.Is(err, seekio.ErrNotFound),
		errors.Is(err, seekio.ErrPermissionDenied),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// RetryError indicates an operation failed after all retry attempts.
type RetryError struct {
	Attempts int
	LastErr  error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryError) Unwrap() error {
	return e.LastErr
}

// IsRetryError returns true if err is a RetryError.
func IsRetryError(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}

// IsTemporaryError returns true if err is likely temporary and worth retrying.
// It can be used as RetryConfig.RetryableErrors.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) {
		return timeout.Timeout()
	}

	return false
}

// closeFetcher closes f if it holds resources.
func closeFetcher(f Fetcher) error {
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
