package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookLog is the raw audit copy of an inbound provider call, persisted
// before any mutation and purged after the retention window.
type WebhookLog struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CorrelationID *string         `gorm:"column:correlation_id;index"`
	SourceAddress string          `gorm:"column:source_address;not null"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

// SecurityAlert is an advisory record for manual review; it never blocks
// otherwise-valid processing.
type SecurityAlert struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SourceAddress string          `gorm:"column:source_address;not null;index"`
	Reason        string          `gorm:"column:reason;not null"`
	Details       json.RawMessage `gorm:"column:details;type:jsonb"`
	Reviewed      bool            `gorm:"column:reviewed;not null;default:false"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
