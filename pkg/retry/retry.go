package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Func is a unit of work that may be attempted more than once.
type Func func(attempt int) error

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// Options configures Do.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter spreads each wait by up to this fraction of itself, so concurrent writers that
	// lost the same race do not retry in lockstep.
	Jitter     float64
	Classifier Classifier
	// OnRetry runs before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultOptions retries every error with exponential backoff.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// ConflictOptions suits optimistic-concurrency loops: short waits, only for errors matching
// retryable.
func ConflictOptions(attempts int, retryable Classifier) Options {
	return Options{
		MaxAttempts:     attempts,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		Jitter:          0.5,
		Classifier:      retryable,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run out or ctx ends.
// The last error is returned when attempts run out.
func Do(ctx context.Context, fn Func, opts Options) error {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if opts.Classifier != nil && !opts.Classifier(err) {
			return err
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(withJitter(CalculateBackoff(attempt, opts), opts.Jitter)):
		}
	}

	return lastErr
}

// CalculateBackoff returns the wait after the given failed attempt, capped at MaxInterval.
func CalculateBackoff(attempt int, opts Options) time.Duration {
	if attempt <= 1 {
		return capInterval(opts.InitialInterval, opts.MaxInterval)
	}
	interval := float64(opts.InitialInterval) * math.Pow(opts.Multiplier, float64(attempt-1))
	if opts.MaxInterval > 0 && interval > float64(opts.MaxInterval) {
		return opts.MaxInterval
	}
	return time.Duration(interval)
}

func capInterval(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func withJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return time.Duration(float64(d) - spread/2 + rand.Float64()*spread)
}
