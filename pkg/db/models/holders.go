package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller holds a running balance mutated only through the ledger.
type Seller struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Phone        *string   `gorm:"column:phone"`
	Email        *string   `gorm:"column:email"`
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Organizer holds a running balance mutated only through the ledger.
type Organizer struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Email        *string   `gorm:"column:email"`
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Event holds a running balance mutated only through the ledger.
type Event struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizerID  uuid.UUID  `gorm:"column:organizer_id;type:uuid;not null;index"`
	Name         string     `gorm:"column:name;not null"`
	BalanceCents int        `gorm:"column:balance_cents;not null;default:0"`
	StartsAt     *time.Time `gorm:"column:starts_at"`
	EndsAt       *time.Time `gorm:"column:ends_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
