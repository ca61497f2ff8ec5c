package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
)

// Repository manages persistence for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// FindByCorrelationKey matches the key against invoice id, provider api
	// ref and provider tx ref, in that order of preference.
	FindByCorrelationKey(ctx context.Context, key string) (*models.Payment, error)
	// FindByCorrelationKeyForUpdate is FindByCorrelationKey with a row lock,
	// for use inside a reconciliation transaction.
	FindByCorrelationKeyForUpdate(ctx context.Context, key string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByCorrelationKey(ctx context.Context, key string) (*models.Payment, error) {
	return r.findByCorrelationKey(ctx, r.db, key)
}

func (r *repository) FindByCorrelationKeyForUpdate(ctx context.Context, key string) (*models.Payment, error) {
	return r.findByCorrelationKey(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *repository) findByCorrelationKey(ctx context.Context, db *gorm.DB, key string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.WithContext(ctx).
		Where("invoice_id = ? OR provider_api_ref = ? OR provider_tx_ref = ?", key, key, key).
		Order("created_at ASC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}
