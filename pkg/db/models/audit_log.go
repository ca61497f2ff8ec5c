package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// AuditLog records actions against financially sensitive records, including
// rejected transition attempts.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubjectType string          `gorm:"column:subject_type;not null;index:idx_audit_subject"`
	SubjectID   uuid.UUID       `gorm:"column:subject_id;type:uuid;not null;index:idx_audit_subject"`
	Action      string          `gorm:"column:action;not null"`
	Details     json.RawMessage `gorm:"column:details;type:jsonb"`
	PerformedBy *uuid.UUID      `gorm:"column:performed_by;type:uuid"`
	ActorType   enums.ActorType `gorm:"column:actor_type;type:actor_type;not null;default:'system'"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
