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

// SaveRequest is a client state upload. Life is required; MaxLife and RefillInterval fall
// back to the defaults when non-positive.
type SaveRequest struct {
	ID                     string
	Payload                string
	Life                   *int
	MaxLife                int
	RefillInterval         int
	ClientVersion          string
	PromotionRewardGranted *bool
}

func (r SaveRequest) validate() error {
	switch {
	case r.ID == "":
		return validationError("sku is required")
	case r.Payload == "":
		return validationError("data is required")
	case r.Life == nil:
		return validationError("life is required")
	case *r.Life < 0:
		return validationError("life must not be negative, got %d", *r.Life)
	}
	return nil
}

// SaveResult describes the committed record.
type SaveResult struct {
	Created        bool
	Life           int
	Level          int
	AnchorAdvanced bool
	LevelRaised    bool
}

// Save merges a client upload into the player's record. The anchor moves only when the
// upload raises life; level and firstAchievedAt move only when the payload level is higher.
func (s *Service) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	timer := observe("save")
	defer timer.ObserveDuration()

	if err := req.validate(); err != nil {
		metrics.SavesTotal.WithLabelValues("invalid").Inc()
		return SaveResult{}, err
	}

	maxLife := positiveOr(req.MaxLife, s.defaults.MaxLife)
	interval := positiveOr(req.RefillInterval, s.defaults.RefillInterval)
	life := clamp(*req.Life, 0, maxLife)

	level, err := parser.ExtractLevel(req.Payload)
	if err != nil {
		s.logger.Warn("payload level unreadable, keeping stored level",
			zap.String("sku", req.ID),
			zap.Error(err))
		level = 0
	}

	var (
		result    SaveResult
		committed store.Record
		trigger   regen.Trigger
	)
	err = s.commit(ctx, "save", func(int) error {
		current, err := s.store.Get(ctx, req.ID)
		if errors.Is(err, store.ErrNotFound) {
			trigger = regen.AdvanceOnCreate()
			committed, err = s.store.Create(ctx, req.ID, s.saveCreateFields(req, life, maxLife, interval, level))
			if err != nil {
				return err
			}
			result = SaveResult{Created: true, AnchorAdvanced: true, LevelRaised: true}
			return nil
		}
		if err != nil {
			return err
		}

		fields := store.Fields{
			store.FieldPayload:        req.Payload,
			store.FieldLife:           life,
			store.FieldMaxLife:        maxLife,
			store.FieldRefillInterval: interval,
			store.FieldClientVersion:  req.ClientVersion,
		}
		if req.PromotionRewardGranted != nil {
			fields[store.FieldPromotionRewardGranted] = *req.PromotionRewardGranted
		}

		trigger = regen.AdvanceOnSave(current.Life, life)
		if trigger.Advances() {
			fields[store.FieldLastRefillAnchor] = store.ServerTimestamp
		}

		raised := level > s.storedLevel(current)
		if raised {
			fields[store.FieldLevel] = level
			fields[store.FieldFirstAchievedAt] = store.ServerTimestamp
		}

		committed, err = s.store.UpdateIf(ctx, req.ID, current.Version, fields)
		if err != nil {
			return err
		}
		result = SaveResult{AnchorAdvanced: trigger.Advances(), LevelRaised: raised}
		return nil
	})
	if err != nil {
		metrics.SavesTotal.WithLabelValues("error").Inc()
		s.logger.Error("save failed", err, zap.String("sku", req.ID))
		return SaveResult{}, err
	}

	result.Life = committed.Life
	result.Level = committed.Level
	countAnchor(trigger)

	switch {
	case result.Created:
		metrics.SavesTotal.WithLabelValues("created").Inc()
		s.publish(ctx, events.TypeCreated, committed, 0)
	case result.LevelRaised:
		metrics.SavesTotal.WithLabelValues("updated").Inc()
		s.publish(ctx, events.TypeLevelUp, committed, 0)
	default:
		metrics.SavesTotal.WithLabelValues("updated").Inc()
		s.publish(ctx, events.TypeSaved, committed, 0)
	}
	return result, nil
}

func (s *Service) saveCreateFields(req SaveRequest, life, maxLife, interval, level int) store.Fields {
	fields := store.Fields{
		store.FieldPayload:          req.Payload,
		store.FieldLife:             life,
		store.FieldMaxLife:          maxLife,
		store.FieldRefillInterval:   interval,
		store.FieldLastRefillAnchor: store.ServerTimestamp,
		store.FieldLevel:            max(s.defaults.Level, level),
		store.FieldFirstAchievedAt:  store.ServerTimestamp,
		store.FieldClientVersion:    req.ClientVersion,
	}
	granted := false
	if req.PromotionRewardGranted != nil {
		granted = *req.PromotionRewardGranted
	}
	fields[store.FieldPromotionRewardGranted] = granted
	return fields
}
