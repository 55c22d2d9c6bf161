// Package ranking builds the leaderboard of the ranked cohort.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lifeline/pkg/cache"
	"lifeline/pkg/logger"
	"lifeline/pkg/metrics"
	"lifeline/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultWindow = 200
	DefaultTopK   = 50

	// OutOfWindow is the rank reported for a requester outside the public top slice.
	OutOfWindow = -1
)

// Reader is the store capability ranking needs.
type Reader interface {
	Get(ctx context.Context, id string) (store.Record, error)
	TopByLevel(ctx context.Context, limit int) ([]store.Record, error)
}

// Entry is one leaderboard row.
type Entry struct {
	Rank            int
	SKU             string
	Nickname        string
	Level           int
	FirstAchievedAt time.Time
}

// Result is the public top slice plus the requester's own row when known.
type Result struct {
	Entries []Entry
	MyRank  *Entry
}

// Options configures a Service. Zero values take the package defaults; an empty CohortMarker
// admits every record.
type Options struct {
	Window       int
	TopK         int
	CohortMarker string
}

// Service ranks the cohort window by level desc, firstAchievedAt asc.
type Service struct {
	reader Reader
	cache  cache.WindowCache
	logger *logger.Logger
	opts   Options
}

// NewService creates a ranking service. wc may be nil to always read the store.
func NewService(r Reader, wc cache.WindowCache, l *logger.Logger, opts Options) *Service {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Service{reader: r, cache: wc, logger: l.Named("ranking"), opts: opts}
}

// Ranking returns the top slice and, when requesterID is set, the requester's row. Rank
// beyond the window is never computed: a requester outside the top slice gets OutOfWindow,
// and one with no record gets no row.
func (s *Service) Ranking(ctx context.Context, requesterID string) (Result, error) {
	timer := prometheus.NewTimer(metrics.OperationLatency.WithLabelValues("ranking"))
	defer timer.ObserveDuration()

	window, err := s.window(ctx)
	if err != nil {
		return Result{}, err
	}

	entries := Rank(window, s.opts.CohortMarker, s.opts.TopK)
	result := Result{Entries: entries}
	if requesterID == "" {
		return result, nil
	}

	for i := range entries {
		if entries[i].SKU == requesterID {
			mine := entries[i]
			result.MyRank = &mine
			return result, nil
		}
	}

	rec, err := s.reader.Get(ctx, requesterID)
	if errors.Is(err, store.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("requester lookup: %w", err)
	}
	mine := entryOf(rec, OutOfWindow)
	result.MyRank = &mine
	return result, nil
}

func (s *Service) window(ctx context.Context) ([]store.Record, error) {
	key := fmt.Sprintf("window:%d", s.opts.Window)

	if s.cache != nil {
		records, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("ranking cache read failed", zap.Error(err))
		} else if ok {
			metrics.RankingCacheHitsTotal.Inc()
			return records, nil
		}
		metrics.RankingCacheMissesTotal.Inc()
	}

	records, err := s.reader.TopByLevel(ctx, s.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("ranking window: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, records); err != nil {
			s.logger.Warn("ranking cache write failed", zap.Error(err))
		}
	}
	return records, nil
}

// Rank filters window to records whose client version contains marker, orders them and
// numbers them 1..N, keeping at most topK.
func Rank(window []store.Record, marker string, topK int) []Entry {
	cohort := make([]store.Record, 0, len(window))
	for _, r := range window {
		if strings.Contains(r.ClientVersion, marker) {
			cohort = append(cohort, r)
		}
	}

	sort.SliceStable(cohort, func(i, j int) bool { return less(cohort[i], cohort[j]) })

	if topK > 0 && len(cohort) > topK {
		cohort = cohort[:topK]
	}

	entries := make([]Entry, len(cohort))
	for i, r := range cohort {
		entries[i] = entryOf(r, i+1)
	}
	return entries
}

// less orders by level desc, then earliest achievement, then id for a total order.
func less(a, b store.Record) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if !a.FirstAchievedAt.Equal(b.FirstAchievedAt) {
		return a.FirstAchievedAt.Before(b.FirstAchievedAt)
	}
	return a.ID < b.ID
}

func entryOf(r store.Record, rank int) Entry {
	return Entry{
		Rank:            rank,
		SKU:             r.ID,
		Nickname:        r.Nickname,
		Level:           r.Level,
		FirstAchievedAt: r.FirstAchievedAt,
	}
}
