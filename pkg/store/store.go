package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional write lost against a concurrent writer, or a
	// create found the id already taken.
	ErrConflict = errors.New("record changed concurrently")
)

// Record is the persisted per-player document. ID is the stable external SKU.
type Record struct {
	ID                     string     `bson:"_id"`
	Payload                string     `bson:"payload"`
	Life                   int        `bson:"life"`
	MaxLife                int        `bson:"maxLife"`
	RefillInterval         int        `bson:"refillInterval"` // seconds
	LastRefillAnchor       *time.Time `bson:"lastRefillAnchor,omitempty"`
	Level                  int        `bson:"level"`
	FirstAchievedAt        time.Time  `bson:"firstAchievedAt"`
	Nickname               string     `bson:"nickname,omitempty"`
	ClientVersion          string     `bson:"clientVersion"`
	PromotionRewardGranted bool       `bson:"promotionRewardGranted"`
	CreatedAt              time.Time  `bson:"createdAt"`
	UpdatedAt              time.Time  `bson:"updatedAt"`
	Version                int64      `bson:"version"`
}

// Field names as persisted.
const (
	FieldPayload                = "payload"
	FieldLife                   = "life"
	FieldMaxLife                = "maxLife"
	FieldRefillInterval         = "refillInterval"
	FieldLastRefillAnchor       = "lastRefillAnchor"
	FieldLevel                  = "level"
	FieldFirstAchievedAt        = "firstAchievedAt"
	FieldNickname               = "nickname"
	FieldClientVersion          = "clientVersion"
	FieldPromotionRewardGranted = "promotionRewardGranted"
	FieldCreatedAt              = "createdAt"
	FieldUpdatedAt              = "updatedAt"
	FieldVersion                = "version"
)

// Fields is a partial document keyed by field name.
type Fields map[string]interface{}

type serverTimestamp struct{}

// ServerTimestamp is a field value the store replaces with its own clock at commit.
// Resolved values never go backwards for a single document.
var ServerTimestamp interface{} = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// RecordStore is the gateway the economy core persists through. Every write advances
// updatedAt and version; callers never set either.
type RecordStore interface {
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Create inserts a new record and returns it as committed. ErrConflict if id exists.
	Create(ctx context.Context, id string, fields Fields) (Record, error)

	// Set upserts fields. With merge, unspecified fields are untouched; without it the
	// document is replaced.
	Set(ctx context.Context, id string, fields Fields, merge bool) error

	// Update merges fields into an existing record. ErrNotFound if absent.
	Update(ctx context.Context, id string, fields Fields) error

	// UpdateIf merges fields only while the stored version still equals version and returns the
	// committed record. ErrConflict otherwise.
	UpdateIf(ctx context.Context, id string, version int64, fields Fields) (Record, error)

	// NicknameExists is an indexed equality lookup on nickname.
	NicknameExists(ctx context.Context, nickname string) (bool, error)

	// TopByLevel returns up to limit records ordered by level desc, firstAchievedAt asc.
	TopByLevel(ctx context.Context, limit int) ([]Record, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
