package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

type webhookLogPurger interface {
	PurgeExpiredLogs(ctx context.Context, now time.Time) (int64, error)
}

type WebhookRetentionJobParams struct {
	Logger *logger.Logger
	Gate   webhookLogPurger
}

// NewWebhookRetentionJob deletes webhook audit logs past their retention
// window.
func NewWebhookRetentionJob(params WebhookRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("webhook gate required")
	}
	return &webhookRetentionJob{
		logg: params.Logger,
		gate: params.Gate,
		now:  time.Now,
	}, nil
}

type webhookRetentionJob struct {
	logg *logger.Logger
	gate webhookLogPurger
	now  func() time.Time
}

func (j *webhookRetentionJob) Name() string { return "webhook-retention" }

func (j *webhookRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.gate.PurgeExpiredLogs(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("webhook retention: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "webhook retention cleanup complete")
	return nil
}
