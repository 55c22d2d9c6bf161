package player

import (
	"context"
	"errors"

	"lifeline/pkg/events"
	"lifeline/pkg/metrics"
	"lifeline/pkg/parser"
	"lifeline/pkg/regen"
	"lifeline/pkg/store"

	"go.uber.org/zap"
)

// LoadResult is the player's state after regeneration.
type LoadResult struct {
	IsNewUser              bool
	Life                   int
	NextRefillIn           int // seconds; 0 at cap
	MaxLife                int
	RefillInterval         int
	Level                  int
	Nickname               string
	Payload                string
	PromotionRewardGranted bool
	Refilled               int
}

// Load returns the player's regenerated state, provisioning a default record for an unknown
// id. Nothing is written when regeneration changed nothing and the anchor stays put.
func (s *Service) Load(ctx context.Context, id string) (LoadResult, error) {
	timer := observe("load")
	defer timer.ObserveDuration()

	if id == "" {
		metrics.LoadsTotal.WithLabelValues("invalid").Inc()
		return LoadResult{}, validationError("sku is required")
	}

	var (
		result    LoadResult
		committed store.Record
		trigger   regen.Trigger
		wrote     bool
		gained    int
	)
	err := s.commit(ctx, "load", func(int) error {
		current, err := s.store.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			nickname, err := s.nicknames.Generate(ctx)
			if err != nil {
				return storageError("nickname", err)
			}
			trigger = regen.AdvanceOnCreate()
			committed, err = s.store.Create(ctx, id, s.defaultFields(id, nickname))
			if err != nil {
				return err
			}
			wrote = true
			result = resultOf(committed)
			result.IsNewUser = true
			result.NextRefillIn = 0
			return nil
		}
		if err != nil {
			return err
		}

		maxLife := positiveOr(current.MaxLife, s.defaults.MaxLife)
		interval := positiveOr(current.RefillInterval, s.defaults.RefillInterval)
		r := regen.Compute(current.Life, maxLife, interval, current.LastRefillAnchor, s.clock.Now())
		trigger = regen.AdvanceOnLoad(maxLife, current.LastRefillAnchor != nil, r)
		gained = r.Life - current.Life

		fields := store.Fields{}
		if r.Life != current.Life {
			fields[store.FieldLife] = r.Life
		}
		if trigger.Advances() {
			fields[store.FieldLastRefillAnchor] = store.ServerTimestamp
		}
		if maxLife != current.MaxLife {
			fields[store.FieldMaxLife] = maxLife
		}
		if interval != current.RefillInterval {
			fields[store.FieldRefillInterval] = interval
		}
		if current.Nickname == "" {
			nickname, err := s.nicknames.Generate(ctx)
			if err != nil {
				return storageError("nickname", err)
			}
			fields[store.FieldNickname] = nickname
		}

		committed = current
		wrote = len(fields) > 0
		if wrote {
			committed, err = s.store.UpdateIf(ctx, id, current.Version, fields)
			if err != nil {
				return err
			}
		}

		result = resultOf(committed)
		result.Life = r.Life
		result.NextRefillIn = r.NextRefillIn
		result.MaxLife = maxLife
		result.RefillInterval = interval
		result.Refilled = r.RefillCount
		return nil
	})
	if err != nil {
		metrics.LoadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("load failed", err, zap.String("sku", id))
		return LoadResult{}, err
	}

	countAnchor(trigger)
	switch {
	case result.IsNewUser:
		metrics.LoadsTotal.WithLabelValues("created").Inc()
		s.publish(ctx, events.TypeCreated, committed, 0)
	case result.Refilled > 0:
		metrics.LoadsTotal.WithLabelValues("refilled").Inc()
		metrics.LivesRefilledTotal.Add(float64(gained))
		s.publish(ctx, events.TypeRefill, committed, gained)
	default:
		metrics.LoadsTotal.WithLabelValues("unchanged").Inc()
	}
	if wrote {
		s.logger.Debug("load committed",
			zap.String("sku", id),
			zap.Int("life", result.Life),
			zap.String("anchor", string(trigger)))
	}
	return result, nil
}

func (s *Service) defaultFields(id, nickname string) store.Fields {
	d := s.defaults
	return store.Fields{
		store.FieldPayload:                parser.DefaultPayload(id, d.Level),
		store.FieldLife:                   d.Life,
		store.FieldMaxLife:                d.MaxLife,
		store.FieldRefillInterval:         d.RefillInterval,
		store.FieldLastRefillAnchor:       store.ServerTimestamp,
		store.FieldLevel:                  d.Level,
		store.FieldFirstAchievedAt:        store.ServerTimestamp,
		store.FieldNickname:               nickname,
		store.FieldClientVersion:          "",
		store.FieldPromotionRewardGranted: false,
	}
}

func resultOf(rec store.Record) LoadResult {
	return LoadResult{
		Life:                   rec.Life,
		MaxLife:                rec.MaxLife,
		RefillInterval:         rec.RefillInterval,
		Level:                  rec.Level,
		Nickname:               rec.Nickname,
		Payload:                rec.Payload,
		PromotionRewardGranted: rec.PromotionRewardGranted,
	}
}
