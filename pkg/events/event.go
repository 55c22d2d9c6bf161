// Package events defines the player progress events the economy service emits after each
// committed write, and the publisher that ships them to Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a PlayerEvent.
type Type string

const (
	TypeCreated Type = "created"
	TypeSaved   Type = "saved"
	TypeLevelUp Type = "level_up"
	TypeRefill  Type = "refill"
)

// PlayerEvent is a snapshot of the committed record plus what caused it.
type PlayerEvent struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	SKU             string    `json:"sku"`
	Nickname        string    `json:"nickname,omitempty"`
	Level           int       `json:"level"`
	Life            int       `json:"life"`
	MaxLife         int       `json:"max_life"`
	Refilled        int       `json:"refilled,omitempty"`
	ClientVersion   string    `json:"client_version,omitempty"`
	FirstAchievedAt time.Time `json:"first_achieved_at"`
	OccurredAt      time.Time `json:"occurred_at"`
	Version         int64     `json:"version"`
}

// New stamps a fresh event id.
func New(t Type, sku string, occurredAt time.Time) PlayerEvent {
	return PlayerEvent{
		ID:         uuid.NewString(),
		Type:       t,
		SKU:        sku,
		OccurredAt: occurredAt.UTC(),
	}
}
