// Package player runs the save and load flows over player records: life regeneration, the
// refill anchor, level tracking and first-load provisioning.
package player

import (
	"context"
	"errors"

	"lifeline/pkg/clock"
	"lifeline/pkg/events"
	"lifeline/pkg/logger"
	"lifeline/pkg/metrics"
	"lifeline/pkg/parser"
	"lifeline/pkg/regen"
	"lifeline/pkg/retry"
	"lifeline/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const DefaultCommitAttempts = 5

// NicknameGenerator allocates a display name for a new or legacy record.
type NicknameGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// Config tunes a Service.
type Config struct {
	Defaults Defaults
	// CommitAttempts bounds optimistic retries per request.
	CommitAttempts int
}

// Service is the save/load orchestrator. Every read-modify-write is a version-guarded
// commit retried on conflict, so concurrent requests for one player never lose a refill.
type Service struct {
	store     store.RecordStore
	nicknames NicknameGenerator
	publisher events.Publisher
	clock     clock.Clock
	logger    *logger.Logger
	defaults  Defaults
	attempts  int
}

// NewService wires a Service. A nil publisher discards events.
func NewService(s store.RecordStore, n NicknameGenerator, p events.Publisher, c clock.Clock, l *logger.Logger, cfg Config) *Service {
	if p == nil {
		p = events.Discard{}
	}
	if c == nil {
		c = clock.System{}
	}
	return &Service{
		store:     s,
		nicknames: n,
		publisher: p,
		clock:     c,
		logger:    l.Named("player"),
		defaults:  cfg.Defaults.normalize(),
		attempts:  positiveOr(cfg.CommitAttempts, DefaultCommitAttempts),
	}
}

// commit runs fn until it succeeds or fails with anything but a version conflict.
func (s *Service) commit(ctx context.Context, op string, fn retry.Func) error {
	opts := retry.ConflictOptions(s.attempts, func(err error) bool {
		return errors.Is(err, store.ErrConflict)
	})
	opts.OnRetry = func(attempt int, err error) {
		metrics.CommitConflictsTotal.WithLabelValues(op).Inc()
		s.logger.Debug("commit conflict, retrying", zap.String("op", op), zap.Int("attempt", attempt))
	}

	if err := retry.Do(ctx, fn, opts); err != nil {
		return storageError(op, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t events.Type, rec store.Record, refilled int) {
	event := events.New(t, rec.ID, rec.UpdatedAt)
	event.Nickname = rec.Nickname
	event.Level = rec.Level
	event.Life = rec.Life
	event.MaxLife = rec.MaxLife
	event.Refilled = refilled
	event.ClientVersion = rec.ClientVersion
	event.FirstAchievedAt = rec.FirstAchievedAt
	event.Version = rec.Version
	s.publisher.Publish(ctx, event)
}

func observe(op string) *prometheus.Timer {
	return prometheus.NewTimer(metrics.OperationLatency.WithLabelValues(op))
}

func countAnchor(t regen.Trigger) {
	if t.Advances() {
		metrics.AnchorAdvancesTotal.WithLabelValues(string(t)).Inc()
	}
}

// storedLevel reads the record's level, falling back to its payload for records written
// before level was kept as a field.
func (s *Service) storedLevel(rec store.Record) int {
	if rec.Level > 0 {
		return rec.Level
	}
	level, err := parser.ExtractLevel(rec.Payload)
	if err != nil {
		return 0
	}
	return level
}
