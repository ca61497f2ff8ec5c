package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// OrderStatusHistory is the append-only transition record written inside the
// same transaction as the transition it describes.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	Trigger   enums.OrderTrigger `gorm:"column:trigger;not null"`
	Note      *string           `gorm:"column:note"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorType enums.ActorType   `gorm:"column:actor_type;type:actor_type;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
