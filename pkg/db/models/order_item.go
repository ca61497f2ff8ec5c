package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is an immutable line-item snapshot decoupled from the live
// product record.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	SubtotalCents  int        `gorm:"column:subtotal_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
