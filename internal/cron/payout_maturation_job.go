package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

type payoutMaturer interface {
	MaturePayouts(ctx context.Context, now time.Time) (int, error)
}

type PayoutMaturationJobParams struct {
	Logger     *logger.Logger
	Dispatcher payoutMaturer
}

// NewPayoutMaturationJob sweeps pending payouts whose maturation window has
// elapsed into processing.
func NewPayoutMaturationJob(params PayoutMaturationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	return &payoutMaturationJob{
		logg:       params.Logger,
		dispatcher: params.Dispatcher,
		now:        time.Now,
	}, nil
}

type payoutMaturationJob struct {
	logg       *logger.Logger
	dispatcher payoutMaturer
	now        func() time.Time
}

func (j *payoutMaturationJob) Name() string { return "payout-maturation" }

func (j *payoutMaturationJob) Run(ctx context.Context) error {
	matured, err := j.dispatcher.MaturePayouts(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("payout maturation: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "payouts_matured", matured)
	j.logg.Info(logCtx, "payout maturation sweep complete")
	return nil
}
