package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// LedgerEntry is the append-only record of one signed balance delta. The
// holder's running balance can be reconstructed by replaying its entries.
type LedgerEntry struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	HolderType enums.HolderType      `gorm:"column:holder_type;type:holder_type;not null;index:idx_ledger_holder"`
	HolderID   uuid.UUID             `gorm:"column:holder_id;type:uuid;not null;index:idx_ledger_holder"`
	Type       enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	AmountCents int                  `gorm:"column:amount_cents;not null"`
	PaymentID  *uuid.UUID            `gorm:"column:payment_id;type:uuid"`
	OrderID    *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	TicketID   *uuid.UUID            `gorm:"column:ticket_id;type:uuid"`
	PayoutID   *uuid.UUID            `gorm:"column:payout_id;type:uuid"`
	Metadata   json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
