package parser

import (
	"errors"
	"fmt"

	"lifeline/pkg/events"
	"lifeline/pkg/writer"

	"github.com/goccy/go-json"
)

// ParsePlayerEvent deserializes a Kafka message value into a progress row.
func ParsePlayerEvent(data []byte) (writer.ProgressRecord, error) {
	var event events.PlayerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return writer.ProgressRecord{}, fmt.Errorf("failed to unmarshal player event: %w", err)
	}

	if event.ID == "" {
		return writer.ProgressRecord{}, errors.New("missing event ID")
	}
	if event.SKU == "" {
		return writer.ProgressRecord{}, errors.New("missing sku")
	}
	if event.Type == "" {
		return writer.ProgressRecord{}, errors.New("missing event type")
	}

	return writer.ProgressRecord{
		SKU:             event.SKU,
		Nickname:        event.Nickname,
		Level:           event.Level,
		Life:            event.Life,
		MaxLife:         event.MaxLife,
		ClientVersion:   event.ClientVersion,
		FirstAchievedAt: event.FirstAchievedAt,
		LastEventType:   string(event.Type),
		LastEventAt:     event.OccurredAt,
		Version:         event.Version,
	}, nil
}
