package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Order is mutated only through state machine transitions.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	ClientID          *uuid.UUID          `gorm:"column:client_id;type:uuid"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	PlatformFeeCents  int                 `gorm:"column:platform_fee_cents;not null"`
	PayoutCents       int                 `gorm:"column:payout_cents;not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	IsDebt            bool                `gorm:"column:is_debt;not null;default:false"`
	IsSellerInitiated bool                `gorm:"column:is_seller_initiated;not null;default:false"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	ConfirmedAt       *time.Time          `gorm:"column:confirmed_at"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
