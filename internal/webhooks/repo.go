package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
)

// Repository manages persistence for webhook audit logs and security alerts.
type Repository interface {
	CreateLog(ctx context.Context, log *models.WebhookLog) error
	CreateAlert(ctx context.Context, alert *models.SecurityAlert) error
	DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListUnreviewedAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhooks repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateLog(ctx context.Context, log *models.WebhookLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) CreateAlert(ctx context.Context, alert *models.SecurityAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repository) DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.WebhookLog{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListUnreviewedAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	var alerts []models.SecurityAlert
	query := r.db.WithContext(ctx).
		Where("reviewed = ?", false).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
