// Package nickname hands out display names that are unique with high probability.
package nickname

import (
	"context"
	"fmt"
	"math/rand/v2"

	"lifeline/pkg/clock"
	"lifeline/pkg/logger"
	"lifeline/pkg/metrics"

	"go.uber.org/zap"
)

const (
	DefaultPrefix   = "Player"
	DefaultAttempts = 10

	suffixSpace = 100_000_000 // 8 digits
)

// Lookup is the store capability the allocator needs.
type Lookup interface {
	NicknameExists(ctx context.Context, nickname string) (bool, error)
}

// Allocator generates prefix + 8 digit names and checks them against the store.
type Allocator struct {
	lookup   Lookup
	clock    clock.Clock
	logger   *logger.Logger
	prefix   string
	attempts int
	random   func() int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Allocator) { a.prefix = prefix }
}

// WithAttempts overrides DefaultAttempts. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.attempts = n
		}
	}
}

// WithRandom replaces the candidate source. The value is reduced to 8 digits.
func WithRandom(fn func() int) Option {
	return func(a *Allocator) { a.random = fn }
}

// New creates an Allocator.
func New(lookup Lookup, c clock.Clock, l *logger.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		lookup:   lookup,
		clock:    c,
		logger:   l.Named("nickname"),
		prefix:   DefaultPrefix,
		attempts: DefaultAttempts,
		random:   func() int { return rand.IntN(suffixSpace) },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate returns the first candidate not taken, or a clock-derived name once the attempts
// are spent. The fallback is not checked and may collide. Lookup errors are returned.
func (a *Allocator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < a.attempts; i++ {
		candidate := a.format(a.random())

		taken, err := a.lookup.NicknameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("nickname lookup: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		metrics.NicknameCollisionsTotal.Inc()
	}

	fallback := a.format(int(a.clock.Now().UnixMilli()))
	a.logger.Warn("nickname attempts exhausted, using clock suffix",
		zap.Int("attempts", a.attempts),
		zap.String("nickname", fallback))
	metrics.NicknameFallbacksTotal.Inc()
	return fallback, nil
}

func (a *Allocator) format(n int) string {
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%s%08d", a.prefix, n%suffixSpace)
}
