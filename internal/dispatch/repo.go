package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

// Repository manages persistence for the artifacts the dispatcher creates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindTicketByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Ticket, error)
	FindTicketByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error

	FindPayoutByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error)
	FindPayoutByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	CreatePayout(ctx context.Context, payout *models.Payout) error
	UpdatePayout(ctx context.Context, payout *models.Payout) error
	// ListMaturePayouts returns pending payouts whose delivery confirmation
	// is older than the cutoff.
	ListMaturePayouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispatch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTicketByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) FindTicketByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Save(ticket).Error
}

func (r *repository) FindPayoutByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindPayoutByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) UpdatePayout(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

func (r *repository) ListMaturePayouts(ctx context.Context, cutoff time.Time, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	query := r.db.WithContext(ctx).
		Where("status = ? AND delivery_confirmed_at IS NOT NULL AND delivery_confirmed_at <= ?", enums.PayoutStatusPending, cutoff).
		Order("delivery_confirmed_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
