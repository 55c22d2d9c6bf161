package nickname

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"lifeline/pkg/clock"
	"lifeline/pkg/logger"
	"lifeline/pkg/store"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLookup struct{ mock.Mock }

func (m *MockLookup) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	args := m.Called(ctx, nickname)
	return args.Bool(0), args.Error(1)
}

var nicknamePattern = regexp.MustCompile(`^Player\d{8}$`)

func fixedClock() *clock.Manual {
	// 1717243200123 ms: the last 8 digits are 43200123.
	return clock.NewManual(time.UnixMilli(1717243200123))
}

func TestGenerateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("candidates are prefix plus 8 digits", prop.ForAll(
		func(n int) bool {
			lookup := new(MockLookup)
			lookup.On("NicknameExists", mock.Anything, mock.Anything).Return(false, nil)
			a := New(lookup, fixedClock(), logger.Nop(), WithRandom(func() int { return n }))

			name, err := a.Generate(context.Background())
			return err == nil && nicknamePattern.MatchString(name)
		},
		gen.IntRange(0, 1<<40),
	))

	properties.Property("always taken terminates within the attempt bound", prop.ForAll(
		func(attempts int) bool {
			lookup := new(MockLookup)
			lookup.On("NicknameExists", mock.Anything, mock.Anything).Return(true, nil)
			a := New(lookup, fixedClock(), logger.Nop(), WithAttempts(attempts))

			name, err := a.Generate(context.Background())
			return err == nil &&
				name == "Player43200123" &&
				len(lookup.Calls) == attempts
		},
		gen.IntRange(1, 25),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestGenerateAcceptsFirstFreeCandidate(t *testing.T) {
	lookup := new(MockLookup)
	lookup.On("NicknameExists", mock.Anything, "Player00000001").Return(true, nil).Once()
	lookup.On("NicknameExists", mock.Anything, "Player00000002").Return(false, nil).Once()

	seq := 0
	a := New(lookup, fixedClock(), logger.Nop(), WithRandom(func() int { seq++; return seq }))

	name, err := a.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Player00000002", name)
	lookup.AssertExpectations(t)
}

func TestGenerateDefaultAttempts(t *testing.T) {
	lookup := new(MockLookup)
	lookup.On("NicknameExists", mock.Anything, mock.Anything).Return(true, nil)

	name, err := New(lookup, fixedClock(), logger.Nop()).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Player43200123", name)
	lookup.AssertNumberOfCalls(t, "NicknameExists", DefaultAttempts)
}

func TestGenerateLookupErrorIsFatal(t *testing.T) {
	lookup := new(MockLookup)
	lookup.On("NicknameExists", mock.Anything, mock.Anything).Return(false, errors.New("socket closed"))

	_, err := New(lookup, fixedClock(), logger.Nop()).Generate(context.Background())
	assert.ErrorContains(t, err, "socket closed")
	lookup.AssertNumberOfCalls(t, "NicknameExists", 1)
}

func TestGenerateAgainstMemoryStore(t *testing.T) {
	c := fixedClock()
	s := store.NewMemoryStore(c)
	ctx := context.Background()
	_, err := s.Create(ctx, "abc123", store.Fields{store.FieldNickname: "Guest00000007"})
	require.NoError(t, err)

	seq := []int{7, 7, 8}
	a := New(s, c, logger.Nop(), WithPrefix("Guest"), WithRandom(func() int {
		n := seq[0]
		seq = seq[1:]
		return n
	}))

	name, err := a.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Guest00000008", name)
}

func TestFormatReducesToEightDigits(t *testing.T) {
	a := New(new(MockLookup), fixedClock(), logger.Nop())
	assert.Equal(t, "Player00000000", a.format(0))
	assert.Equal(t, "Player23456789", a.format(123456789))
	assert.Equal(t, "Player00000005", a.format(-5))
}
