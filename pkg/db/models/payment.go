package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Payment is the locally held record reconciled against provider events.
// InvoiceID, ProviderAPIRef and ProviderTxRef are all usable correlation keys.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID      string              `gorm:"column:invoice_id;not null;uniqueIndex"`
	ProviderAPIRef *string             `gorm:"column:provider_api_ref;index"`
	ProviderTxRef  *string             `gorm:"column:provider_tx_ref;index"`
	AmountCents    int                 `gorm:"column:amount_cents;not null"`
	Currency       string              `gorm:"column:currency;not null;default:'KES'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Method         enums.PaymentMethod `gorm:"column:method;type:payment_method;not null;default:'mobile_money'"`
	OrderID        *uuid.UUID          `gorm:"column:order_id;type:uuid;index"`
	EventID        *uuid.UUID          `gorm:"column:event_id;type:uuid;index"`
	OrganizerID    *uuid.UUID          `gorm:"column:organizer_id;type:uuid"`
	TicketTypeID   *uuid.UUID          `gorm:"column:ticket_type_id;type:uuid"`
	PayerContact   *string             `gorm:"column:payer_contact"`
	PayerEmail     *string             `gorm:"column:payer_email"`
	Narrative      *string             `gorm:"column:narrative"`
	Metadata       json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
