package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config holds the backoff settings for an upstream call
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the backoff used for model calls
func DefaultConfig() Config {
	return Config{
		MaxRetries:      2,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        4 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Attempt is the outcome of one try: the HTTP status (0 when no response
// arrived), the raw body and any error.
type Attempt[T any] struct {
	Result     T
	StatusCode int
	Body       []byte
	Err        error
}

// ShouldRetry decides whether a failed attempt is worth repeating
type ShouldRetry func(err error, statusCode int, responseBody []byte) bool

// Logger receives printf-style progress messages
type Logger func(message string, args ...any)

// Options configures a retried call
type Options struct {
	Config      Config
	ShouldRetry ShouldRetry
	Logger      Logger
	APIName     string
}

func (c Config) delay(retry int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	d := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(retry)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

func (o Options) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger(format, args...)
	}
}

// Execute runs fn until it succeeds, returns a non-retryable failure, or the
// retries run out. The returned status code is that of the last attempt.
func Execute[T any](ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) Attempt[T]) (T, int, error) {
	var zero T
	total := opts.Config.MaxRetries + 1
	var last Attempt[T]

	for attempt := 0; attempt < total; attempt++ {
		if attempt > 0 {
			d := opts.Config.delay(attempt - 1)
			opts.logf("%s retry attempt %d/%d after %v", opts.APIName, attempt+1, total, d)

			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, last.StatusCode, ctx.Err()
			case <-timer.C:
			}
		}

		last = fn(ctx, attempt)
		if last.Err == nil {
			if attempt > 0 {
				opts.logf("%s succeeded on attempt %d/%d", opts.APIName, attempt+1, total)
			}
			return last.Result, last.StatusCode, nil
		}

		if ctx.Err() != nil {
			return zero, last.StatusCode, ctx.Err()
		}
		if opts.ShouldRetry == nil || !opts.ShouldRetry(last.Err, last.StatusCode, last.Body) {
			return zero, last.StatusCode, last.Err
		}
		if last.StatusCode > 0 {
			opts.logf("%s retryable status %d (attempt %d/%d)", opts.APIName, last.StatusCode, attempt+1, total)
		} else {
			opts.logf("%s network error (attempt %d/%d): %v", opts.APIName, attempt+1, total, last.Err)
		}
	}

	return zero, last.StatusCode, &ExhaustedError{
		APIName:        opts.APIName,
		Attempts:       total,
		LastStatusCode: last.StatusCode,
		Err:            last.Err,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	APIName        string
	Attempts       int
	LastStatusCode int
	Err            error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.APIName, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
