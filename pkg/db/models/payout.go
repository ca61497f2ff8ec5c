package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Payout is created exactly once per completed order and matures into
// processing only after the configured window has elapsed since delivery
// confirmation.
type Payout struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             *uuid.UUID         `gorm:"column:order_id;type:uuid;uniqueIndex"`
	SellerID            uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountCents         int                `gorm:"column:amount_cents;not null"`
	FeeCents            int                `gorm:"column:fee_cents;not null"`
	NetCents            int                `gorm:"column:net_cents;not null"`
	Status              enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	ProviderRef         *string            `gorm:"column:provider_ref"`
	DeliveryConfirmedAt *time.Time         `gorm:"column:delivery_confirmed_at"`
	ProcessedAt         *time.Time         `gorm:"column:processed_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
