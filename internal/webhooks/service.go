package webhooks

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkariuki-dev/sokohub-backend/internal/payments"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

// reconciler is the slice of the payments service the gate forwards into.
type reconciler interface {
	Reconcile(ctx context.Context, input payments.ReconcileInput) (*payments.ReconcileOutcome, error)
}

// sourceCounter tracks per-source call volume over a rolling window.
type sourceCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

// EventInput is one raw inbound provider call.
type EventInput struct {
	SourceAddress  string
	CorrelationKey string
	RawStatus      string
	ProviderTxRef  string
	FailureReason  string
	Payload        json.RawMessage
}

// Service is the ingestion gate in front of the payment reconciler. Every
// call is audited before any mutation; volume anomalies raise advisory
// alerts without blocking legitimate traffic.
type Service struct {
	repo       Repository
	counter    sourceCounter
	reconciler reconciler
	cfg        config.WebhookConfig
	logger     zerolog.Logger
}

// NewService wires the webhook ingestion gate.
func NewService(repo Repository, counter sourceCounter, rec reconciler, cfg config.WebhookConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		counter:    counter,
		reconciler: rec,
		cfg:        cfg,
		logger:     logger.With().Str("component", "webhooks").Logger(),
	}
}

// HandlePaymentEvent audits, screens and forwards one provider call. The
// audit row is written first and survives regardless of what the reconciler
// decides about the event.
func (s *Service) HandlePaymentEvent(ctx context.Context, input EventInput) (*payments.ReconcileOutcome, error) {
	key := strings.TrimSpace(input.CorrelationKey)

	log := &models.WebhookLog{
		SourceAddress: strings.TrimSpace(input.SourceAddress),
		Payload:       input.Payload,
	}
	if key != "" {
		log.CorrelationID = &key
	}
	if err := s.repo.CreateLog(ctx, log); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "persist webhook audit log")
	}

	s.screenSource(ctx, input)

	if key == "" {
		return nil, errors.New(errors.CodeValidation, "webhook payload carries no correlation key")
	}

	return s.reconciler.Reconcile(ctx, payments.ReconcileInput{
		CorrelationKey: key,
		RawStatus:      input.RawStatus,
		ProviderTxRef:  input.ProviderTxRef,
		FailureReason:  input.FailureReason,
		Source:         "webhook",
	})
}

// screenSource updates the per-source accumulator and raises advisory alerts.
// Failures here are logged and swallowed; screening never blocks ingestion.
func (s *Service) screenSource(ctx context.Context, input EventInput) {
	source := strings.TrimSpace(input.SourceAddress)
	if source == "" {
		return
	}

	if len(s.cfg.KnownSources) > 0 && !s.isKnownSource(source) {
		s.raiseAlert(ctx, source, "unknown_source", input)
	}

	if s.counter == nil {
		return
	}
	count, err := s.counter.IncrWithTTL(ctx, s.counter.CounterKey("webhook:src:"+source), s.cfg.FraudWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", source).Msg("webhook volume counter unavailable")
		return
	}
	if count == s.cfg.FraudThreshold+1 {
		// Alert once per window, when the threshold is first crossed.
		s.raiseAlert(ctx, source, "volume_threshold_exceeded", input)
	}
}

func (s *Service) isKnownSource(source string) bool {
	for _, known := range s.cfg.KnownSources {
		if strings.TrimSpace(known) == source {
			return true
		}
	}
	return false
}

func (s *Service) raiseAlert(ctx context.Context, source, reason string, input EventInput) {
	details, _ := json.Marshal(map[string]any{
		"correlation_key": input.CorrelationKey,
		"raw_status":      input.RawStatus,
	})
	alert := &models.SecurityAlert{
		SourceAddress: source,
		Reason:        reason,
		Details:       details,
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("source", source).Str("reason", reason).Msg("failed to raise security alert")
		return
	}
	s.logger.Warn().Str("source", source).Str("reason", reason).Msg("security alert raised")
}

// PurgeExpiredLogs deletes audit rows older than the retention window.
func (s *Service) PurgeExpiredLogs(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.repo.DeleteLogsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "purge webhook logs")
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("webhook logs purged")
	}
	return deleted, nil
}
