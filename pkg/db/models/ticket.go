package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Ticket is issued exactly once per completed payment. The PaymentID back
// link is what makes the existence check cheap.
type Ticket struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TicketNumber string             `gorm:"column:ticket_number;not null;uniqueIndex"`
	EventID      uuid.UUID          `gorm:"column:event_id;type:uuid;not null;index"`
	TicketTypeID *uuid.UUID         `gorm:"column:ticket_type_id;type:uuid"`
	PaymentID    *uuid.UUID         `gorm:"column:payment_id;type:uuid;uniqueIndex"`
	Status       enums.TicketStatus `gorm:"column:status;type:ticket_status;not null;default:'pending'"`
	PriceCents   int                `gorm:"column:price_cents;not null"`
	Scanned      bool               `gorm:"column:scanned;not null;default:false"`
	ScannedAt    *time.Time         `gorm:"column:scanned_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
