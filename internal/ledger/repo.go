package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Repository manages persistence for ledger entries and holder balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListByHolder(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) ([]models.LedgerEntry, error)
	ApplyBalanceDelta(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID, deltaCents int) error
	HolderBalance(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByHolder(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("holder_type = ? AND holder_id = ?", holderType, holderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func holderTable(holderType enums.HolderType) (string, error) {
	switch holderType {
	case enums.HolderTypeSeller:
		return "sellers", nil
	case enums.HolderTypeEvent:
		return "events", nil
	case enums.HolderTypeOrganizer:
		return "organizers", nil
	default:
		return "", fmt.Errorf("unknown holder type %q", holderType)
	}
}

func (r *repository) ApplyBalanceDelta(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID, deltaCents int) error {
	table, err := holderTable(holderType)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("UPDATE %s SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", table),
		deltaCents, holderID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("balance holder %s/%s not found", holderType, holderID)
	}
	return nil
}

func (r *repository) HolderBalance(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) (int, error) {
	table, err := holderTable(holderType)
	if err != nil {
		return 0, err
	}
	var balance int
	if err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT balance_cents FROM %s WHERE id = ?", table), holderID).
		Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}
