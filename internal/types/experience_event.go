package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ExperienceEvent is the durable ledger row for one processed source event.
// Write-once per SourceEventID: its existence is the idempotency guard for
// duplicate deliveries and the lookup target for deletions.
type ExperienceEvent struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	DID           string            `gorm:"column:did;not null;index" json:"did"`
	EventKind     string            `gorm:"column:event_kind;not null;index" json:"event_kind"` // "post" | "like" | "repost"
	SourceEventID string            `gorm:"column:source_event_id;not null;uniqueIndex" json:"source_event_id"`
	RawContext    datatypes.JSONMap `gorm:"type:jsonb;column:raw_context" json:"raw_context"`
	XPAwarded     int               `gorm:"column:xp_awarded;not null;default:0" json:"xp_awarded"`
	OccurredAt    time.Time         `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
}

func (ExperienceEvent) TableName() string { return "experience_event" }
