package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
)

// Repository manages persistence for orders, their line items and their
// transition history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderStatusHistory, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder writes the order and its item snapshots together. The caller
// decides whether this happens inside a wider transaction.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderStatusHistory, error) {
	var entries []models.OrderStatusHistory
	query := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}
