package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var errConflict = errors.New("conflict")

func fastOptions(attempts int) Options {
	opts := DefaultOptions()
	opts.MaxAttempts = attempts
	opts.InitialInterval = time.Microsecond
	opts.MaxInterval = 10 * time.Microsecond
	return opts
}

func TestRetryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("backoff never exceeds the cap and starts at the initial interval", prop.ForAll(
		func(initialNs, maxNs int64, multiplier float64, attempt int) bool {
			opts := Options{
				InitialInterval: time.Duration(initialNs),
				MaxInterval:     time.Duration(maxNs),
				Multiplier:      multiplier,
			}
			backoff := CalculateBackoff(attempt, opts)
			if backoff > opts.MaxInterval {
				return false
			}
			return attempt != 1 || backoff == opts.InitialInterval
		},
		gen.Int64Range(int64(time.Millisecond), int64(100*time.Millisecond)),
		gen.Int64Range(int64(time.Second), int64(5*time.Second)),
		gen.Float64Range(1.1, 3.0),
		gen.IntRange(1, 10),
	))

	properties.Property("attempts never exceed the maximum", prop.ForAll(
		func(maxAttempts int) bool {
			count := 0
			_ = Do(context.Background(), func(int) error {
				count++
				return errConflict
			}, fastOptions(maxAttempts))
			return count == maxAttempts
		},
		gen.IntRange(1, 10),
	))

	properties.Property("non-retryable errors stop immediately", prop.ForAll(
		func(failAt int) bool {
			opts := fastOptions(10)
			opts.Classifier = func(err error) bool { return errors.Is(err, errConflict) }

			fatal := errors.New("store unavailable")
			count := 0
			err := Do(context.Background(), func(attempt int) error {
				count++
				if attempt == failAt {
					return fatal
				}
				return errConflict
			}, opts)
			return count == failAt && errors.Is(err, fatal)
		},
		gen.IntRange(1, 5),
	))

	properties.Property("jitter stays within its spread", prop.ForAll(
		func(ms int, jitter float64) bool {
			d := time.Duration(ms) * time.Millisecond
			got := withJitter(d, jitter)
			spread := time.Duration(float64(d) * jitter / 2)
			return got >= d-spread-1 && got <= d+spread+1
		},
		gen.IntRange(1, 1000),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRetrySuccessReportsAttempts(t *testing.T) {
	var retried []int
	opts := ConflictOptions(5, func(err error) bool { return errors.Is(err, errConflict) })
	opts.InitialInterval = time.Microsecond
	opts.OnRetry = func(attempt int, err error) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errConflict)
	}

	err := Do(context.Background(), func(attempt int) error {
		if attempt < 3 {
			return errConflict
		}
		return nil
	}, opts)

	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	count := 0
	err := Do(context.Background(), func(int) error {
		count++
		return errConflict
	}, Options{})
	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, count)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := DefaultOptions()
	opts.InitialInterval = 100 * time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func(int) error { return errConflict }, opts)
	assert.ErrorIs(t, err, context.Canceled)
}
