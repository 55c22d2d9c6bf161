package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lifeline/pkg/clock"
)

// MemoryStore implements RecordStore in process. It backs tests and the "memory" store mode.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore resolving server timestamps with c.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{
		clock:   c,
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, id string, fields Fields) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; ok {
		return Record{}, ErrConflict
	}
	rec := Record{ID: id}
	if err := s.commit(&rec, fields); err != nil {
		return Record{}, err
	}
	return rec.clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, id string, fields Fields, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || !merge {
		rec = Record{ID: id, Version: rec.Version, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
	}
	return s.commit(&rec, fields)
}

func (s *MemoryStore) Update(ctx context.Context, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	return s.commit(&rec, fields)
}

func (s *MemoryStore) UpdateIf(ctx context.Context, id string, version int64, fields Fields) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Version != version {
		return Record{}, ErrConflict
	}
	if err := s.commit(&rec, fields); err != nil {
		return Record{}, err
	}
	return rec.clone(), nil
}

func (s *MemoryStore) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) TopByLevel(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	all := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec.clone())
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if !a.FirstAchievedAt.Equal(b.FirstAchievedAt) {
			return a.FirstAchievedAt.Before(b.FirstAchievedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// commit applies fields to rec, stamps it and stores it. Caller holds s.mu.
func (s *MemoryStore) commit(rec *Record, fields Fields) error {
	now := s.clock.Now()
	if now.Before(rec.UpdatedAt) {
		now = rec.UpdatedAt
	}

	next := *rec
	for name, value := range fields {
		if err := next.apply(name, value, now); err != nil {
			return err
		}
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	next.Version++

	s.records[next.ID] = next
	*rec = next
	return nil
}

func (r *Record) apply(name string, value interface{}, now time.Time) error {
	var err error
	switch name {
	case FieldPayload:
		r.Payload, err = asString(name, value)
	case FieldLife:
		r.Life, err = asInt(name, value)
	case FieldMaxLife:
		r.MaxLife, err = asInt(name, value)
	case FieldRefillInterval:
		r.RefillInterval, err = asInt(name, value)
	case FieldLevel:
		r.Level, err = asInt(name, value)
	case FieldNickname:
		r.Nickname, err = asString(name, value)
	case FieldClientVersion:
		r.ClientVersion, err = asString(name, value)
	case FieldPromotionRewardGranted:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %s: want bool, got %T", name, value)
		}
		r.PromotionRewardGranted = b
	case FieldLastRefillAnchor:
		var t time.Time
		t, err = asTime(name, value, now)
		r.LastRefillAnchor = &t
	case FieldFirstAchievedAt:
		r.FirstAchievedAt, err = asTime(name, value, now)
	case FieldCreatedAt:
		r.CreatedAt, err = asTime(name, value, now)
	case FieldUpdatedAt, FieldVersion:
		// store-owned
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return err
}

func asString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s: want string, got %T", name, v)
	}
	return s, nil
}

func asInt(name string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("field %s: want integer, got %T", name, v)
	}
}

func asTime(name string, v interface{}, now time.Time) (time.Time, error) {
	if IsServerTimestamp(v) {
		return now, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("field %s: want time, got %T", name, v)
	}
	return t.UTC(), nil
}

func (r Record) clone() Record {
	if r.LastRefillAnchor != nil {
		t := *r.LastRefillAnchor
		r.LastRefillAnchor = &t
	}
	return r
}
