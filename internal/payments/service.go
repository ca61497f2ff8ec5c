package payments

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	"github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/provider"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// providerClient is the slice of the provider API the reconciler needs.
type providerClient interface {
	InitiateCharge(ctx context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error)
	PollStatus(ctx context.Context, invoiceID string) (*provider.StatusResponse, error)
}

// ArtifactDispatcher creates downstream artifacts when a payment reaches a
// settled state. Implementations run inside the reconciliation transaction.
type ArtifactDispatcher interface {
	OnPaymentCompleted(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
	OnPaymentRefunded(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
}

// OrderEventSink forwards settled payment outcomes into the order state
// machine, within the same transaction as the payment update.
type OrderEventSink interface {
	PaymentCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, payment *models.Payment) error
	PaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, payment *models.Payment) error
}

// TicketFinder resolves the ticket issued against a payment, when one exists.
type TicketFinder interface {
	FindTicketByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Ticket, error)
}

// InitiateInput describes a new collection request.
type InitiateInput struct {
	AmountCents  int
	Currency     string
	Method       enums.PaymentMethod
	OrderID      *uuid.UUID
	EventID      *uuid.UUID
	OrganizerID  *uuid.UUID
	TicketTypeID *uuid.UUID
	PayerContact string
	PayerEmail   string
	Narrative    string
}

// ReconcileInput is one provider-reported fact about a payment.
type ReconcileInput struct {
	CorrelationKey string
	RawStatus      string
	ProviderTxRef  string
	FailureReason  string
	Source         string
}

// ReconcileOutcome reports what a reconciliation pass did.
type ReconcileOutcome struct {
	Payment     *models.Payment
	From        enums.PaymentStatus
	To          enums.PaymentStatus
	Applied     bool
	KnownStatus bool
}

// StatusView is the read model for the payment status surface: the record
// itself plus the ticket it produced, when one exists.
type StatusView struct {
	Payment  *models.Payment
	TicketID *uuid.UUID
}

// Service reconciles locally held payment records against provider events.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Payment, error)
	Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileOutcome, error)
	GetPaymentStatus(ctx context.Context, correlationKey string) (*StatusView, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	provider    providerClient
	dispatcher  ArtifactDispatcher
	orders      OrderEventSink
	tickets     TicketFinder
	maxAttempts int
	logger      zerolog.Logger
}

// NewService wires the payment reconciler.
func NewService(
	repo Repository,
	tx txRunner,
	providerClient providerClient,
	dispatcher ArtifactDispatcher,
	orders OrderEventSink,
	tickets TicketFinder,
	cfg config.PaymentsConfig,
	logger zerolog.Logger,
) Service {
	attempts := cfg.ReconcileMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &service{
		repo:        repo,
		tx:          tx,
		provider:    providerClient,
		dispatcher:  dispatcher,
		orders:      orders,
		tickets:     tickets,
		maxAttempts: attempts,
		logger:      logger.With().Str("component", "payments").Logger(),
	}
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Payment, error) {
	if input.AmountCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "payment amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid payment method")
	}
	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = "KES"
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		InvoiceID:    newInvoiceID(),
		AmountCents:  input.AmountCents,
		Currency:     currency,
		Status:       enums.PaymentStatusPending,
		Method:       input.Method,
		OrderID:      input.OrderID,
		EventID:      input.EventID,
		OrganizerID:  input.OrganizerID,
		TicketTypeID: input.TicketTypeID,
	}
	if contact := strings.TrimSpace(input.PayerContact); contact != "" {
		payment.PayerContact = &contact
	}
	if email := strings.TrimSpace(input.PayerEmail); email != "" {
		payment.PayerEmail = &email
	}
	if narrative := strings.TrimSpace(input.Narrative); narrative != "" {
		payment.Narrative = &narrative
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "create payment record")
	}

	resp, err := s.provider.InitiateCharge(ctx, provider.ChargeRequest{
		InvoiceID:    payment.InvoiceID,
		AmountCents:  payment.AmountCents,
		Currency:     payment.Currency,
		Method:       payment.Method.String(),
		PayerContact: input.PayerContact,
		PayerEmail:   input.PayerEmail,
		Narrative:    input.Narrative,
	})
	if err != nil {
		// The local record stays pending; a later poll or webhook settles it.
		s.logger.Warn().Err(err).
			Str("invoice_id", payment.InvoiceID).
			Msg("provider charge initiation failed")
		return nil, err
	}

	if ref := strings.TrimSpace(resp.APIRef); ref != "" {
		payment.ProviderAPIRef = &ref
		if err := s.repo.Update(ctx, payment); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "store provider api ref")
		}
	}

	s.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("invoice_id", payment.InvoiceID).
		Int("amount_cents", payment.AmountCents).
		Msg("payment initiated")

	return payment, nil
}

// Reconcile applies one provider-reported status to the local record. The
// locked read, the status update and every downstream artifact share one
// transaction; a conflicting concurrent reconciliation is retried a bounded
// number of times.
func (s *service) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileOutcome, error) {
	key := strings.TrimSpace(input.CorrelationKey)
	if key == "" {
		return nil, errors.New(errors.CodeValidation, "correlation key is required")
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		outcome, err := s.reconcileOnce(ctx, key, input)
		if err == nil {
			return outcome, nil
		}
		if !db.IsConcurrencyConflict(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).
			Str("correlation_key", key).
			Int("attempt", attempt).
			Msg("reconciliation conflict, retrying")
	}
	return nil, errors.Wrap(errors.CodeConflict, lastErr, "reconciliation retries exhausted")
}

func (s *service) reconcileOnce(ctx context.Context, key string, input ReconcileInput) (*ReconcileOutcome, error) {
	var outcome *ReconcileOutcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindByCorrelationKeyForUpdate(ctx, key)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "no payment matches correlation key").
					WithDetails(map[string]any{"correlation_key": key})
			}
			return errors.Wrap(errors.CodeInternal, err, "load payment for reconciliation")
		}

		mapped, known := MapProviderStatus(input.RawStatus)
		if !known {
			s.logger.Warn().
				Str("payment_id", payment.ID.String()).
				Str("raw_status", input.RawStatus).
				Str("source", input.Source).
				Msg("unrecognized provider status, treating as pending")
		}

		from := payment.Status
		apply := allowTransition(from, mapped)

		// Provider references are facts, not state; backfill them even when
		// the status itself is stale or unrecognized.
		changed := false
		if ref := strings.TrimSpace(input.ProviderTxRef); ref != "" && payment.ProviderTxRef == nil {
			payment.ProviderTxRef = &ref
			changed = true
		}

		if apply && mapped != from {
			payment.Status = mapped
			if mapped == enums.PaymentStatusFailed {
				if reason := strings.TrimSpace(input.FailureReason); reason != "" {
					payment.FailureReason = &reason
				}
			}
			changed = true
		}

		if changed {
			if err := repo.Update(ctx, payment); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "persist reconciled payment")
			}
		}

		if apply && mapped != from {
			if err := s.dispatchTransition(ctx, tx, payment, from, mapped); err != nil {
				return err
			}
		}

		outcome = &ReconcileOutcome{
			Payment:     payment,
			From:        from,
			To:          payment.Status,
			Applied:     apply && mapped != from,
			KnownStatus: known,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Applied {
		s.logger.Info().
			Str("payment_id", outcome.Payment.ID.String()).
			Str("from", outcome.From.String()).
			Str("to", outcome.To.String()).
			Str("source", input.Source).
			Msg("payment reconciled")
	}
	return outcome, nil
}

// statusRank orders the forward-only spine of the payment lifecycle. failed
// and cancelled sit outside the rank; they are reachable only from
// non-terminal states.
func statusRank(status enums.PaymentStatus) int {
	switch status {
	case enums.PaymentStatusPending:
		return 0
	case enums.PaymentStatusProcessing:
		return 1
	case enums.PaymentStatusCompleted:
		return 2
	case enums.PaymentStatusRefunded:
		return 3
	default:
		return -1
	}
}

// allowTransition encodes the no-downgrade rule. A terminal record never
// moves backwards; the only move out of a terminal state is completed to
// refunded.
func allowTransition(from, to enums.PaymentStatus) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return from == enums.PaymentStatusCompleted && to == enums.PaymentStatusRefunded
	}
	if to == enums.PaymentStatusFailed || to == enums.PaymentStatusCancelled {
		return true
	}
	return statusRank(to) > statusRank(from)
}

func (s *service) dispatchTransition(ctx context.Context, tx *gorm.DB, payment *models.Payment, from, to enums.PaymentStatus) error {
	switch to {
	case enums.PaymentStatusCompleted:
		if s.dispatcher != nil {
			if err := s.dispatcher.OnPaymentCompleted(ctx, tx, payment); err != nil {
				return err
			}
		}
		if s.orders != nil && payment.OrderID != nil {
			if err := s.orders.PaymentCompleted(ctx, tx, *payment.OrderID, payment); err != nil {
				return err
			}
		}
	case enums.PaymentStatusFailed:
		if s.orders != nil && payment.OrderID != nil {
			if err := s.orders.PaymentFailed(ctx, tx, *payment.OrderID, payment); err != nil {
				return err
			}
		}
	case enums.PaymentStatusRefunded:
		if from == enums.PaymentStatusCompleted && s.dispatcher != nil {
			if err := s.dispatcher.OnPaymentRefunded(ctx, tx, payment); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetPaymentStatus returns the stored record, refreshing it from the provider
// first when it is still in flight. A failed poll degrades to the stored
// status rather than an error.
func (s *service) GetPaymentStatus(ctx context.Context, correlationKey string) (*StatusView, error) {
	key := strings.TrimSpace(correlationKey)
	if key == "" {
		return nil, errors.New(errors.CodeValidation, "correlation key is required")
	}

	payment, err := s.repo.FindByCorrelationKey(ctx, key)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "no payment matches correlation key")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "load payment")
	}

	if payment.Status.IsTerminal() {
		return s.statusView(ctx, payment), nil
	}

	polled, err := s.provider.PollStatus(ctx, payment.InvoiceID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("invoice_id", payment.InvoiceID).
			Msg("provider poll failed, returning stored status")
		return s.statusView(ctx, payment), nil
	}

	outcome, err := s.Reconcile(ctx, ReconcileInput{
		CorrelationKey: payment.InvoiceID,
		RawStatus:      polled.RawStatus,
		ProviderTxRef:  polled.TxRef,
		FailureReason:  polled.FailedReason,
		Source:         "poll",
	})
	if err != nil {
		return nil, err
	}
	return s.statusView(ctx, outcome.Payment), nil
}

// statusView attaches the issued ticket to the status read. A lookup failure
// degrades to the bare record; the ticket is informational here.
func (s *service) statusView(ctx context.Context, payment *models.Payment) *StatusView {
	view := &StatusView{Payment: payment}
	if s.tickets == nil || payment.EventID == nil {
		return view
	}
	ticket, err := s.tickets.FindTicketByPaymentID(ctx, payment.ID)
	if err != nil {
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).
				Str("payment_id", payment.ID.String()).
				Msg("ticket lookup failed")
		}
		return view
	}
	view.TicketID = &ticket.ID
	return view
}

func newInvoiceID() string {
	return fmt.Sprintf("INV-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
}
