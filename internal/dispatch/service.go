package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/internal/ledger"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	"github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ledgerApplier is the slice of the ledger the dispatcher needs.
type ledgerApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, input ledger.ApplyInput) (*models.LedgerEntry, error)
	EntriesForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

// Service turns settled payments and orders into their downstream artifacts:
// tickets, payouts and ledger entries. Creation is exactly-once per source
// record, enforced by an existence check inside the caller's transaction and
// backstopped by unique indexes.
type Service struct {
	repo   Repository
	tx     txRunner
	ledger ledgerApplier
	payout config.PayoutConfig
	logger zerolog.Logger
}

// NewService wires the side-effect dispatcher.
func NewService(repo Repository, tx txRunner, ledgerSvc ledgerApplier, payout config.PayoutConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		ledger: ledgerSvc,
		payout: payout,
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
}

// OnPaymentCompleted issues the ticket for a settled event payment. Payments
// without an event reference have no artifact to create.
func (s *Service) OnPaymentCompleted(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	if payment.EventID == nil {
		return nil
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindTicketByPaymentID(ctx, payment.ID); err == nil {
		// Already issued; a duplicate settlement event changes nothing.
		return nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(errors.CodeInternal, err, "check existing ticket")
	}

	ticket := &models.Ticket{
		ID:           uuid.New(),
		TicketNumber: newTicketNumber(),
		EventID:      *payment.EventID,
		TicketTypeID: payment.TicketTypeID,
		PaymentID:    &payment.ID,
		Status:       enums.TicketStatusPaid,
		PriceCents:   payment.AmountCents,
	}
	if err := repo.CreateTicket(ctx, ticket); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "create ticket")
	}

	delta, err := ledger.TicketDelta(enums.TicketStatusPending, enums.TicketStatusPaid, ticket.PriceCents)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "resolve ticket delta")
	}
	if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
		HolderType:  enums.HolderTypeEvent,
		HolderID:    ticket.EventID,
		Type:        enums.LedgerEntryTicketSale,
		AmountCents: delta,
		PaymentID:   &payment.ID,
		TicketID:    &ticket.ID,
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("ticket_id", ticket.ID.String()).
		Str("payment_id", payment.ID.String()).
		Str("event_id", ticket.EventID.String()).
		Msg("ticket issued")

	return nil
}

// OnPaymentRefunded reverses the ticket credit and retires the ticket.
func (s *Service) OnPaymentRefunded(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	repo := s.repo.WithTx(tx)

	ticket, err := repo.FindTicketByPaymentID(ctx, payment.ID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errors.Wrap(errors.CodeInternal, err, "load ticket for refund")
	}
	if ticket.Status != enums.TicketStatusPaid {
		return nil
	}

	delta, err := ledger.TicketDelta(ticket.Status, enums.TicketStatusRefunded, ticket.PriceCents)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "resolve refund delta")
	}

	ticket.Status = enums.TicketStatusRefunded
	if err := repo.UpdateTicket(ctx, ticket); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "retire refunded ticket")
	}

	if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
		HolderType:  enums.HolderTypeEvent,
		HolderID:    ticket.EventID,
		Type:        enums.LedgerEntryTicketReversal,
		AmountCents: delta,
		PaymentID:   &payment.ID,
		TicketID:    &ticket.ID,
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("ticket_id", ticket.ID.String()).
		Str("payment_id", payment.ID.String()).
		Msg("ticket refunded")

	return nil
}

// CancelTicket voids an issued ticket and debits the event balance by its
// price. The row survives with status cancelled; cancelling an already
// cancelled ticket converges without a second ledger entry.
func (s *Service) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	var out *models.Ticket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ticket, err := repo.FindTicketByIDForUpdate(ctx, ticketID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "ticket not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "load ticket")
		}
		if ticket.Status == enums.TicketStatusCancelled {
			out = ticket
			return nil
		}
		if ticket.Status == enums.TicketStatusRefunded {
			return errors.New(errors.CodeStateConflict, "refunded ticket cannot be cancelled").
				WithDetails(map[string]any{"ticket_id": ticket.ID.String(), "status": ticket.Status.String()})
		}
		if ticket.Scanned {
			return errors.New(errors.CodeStateConflict, "scanned ticket cannot be cancelled").
				WithDetails(map[string]any{"ticket_id": ticket.ID.String()})
		}

		delta, err := ledger.TicketDelta(ticket.Status, enums.TicketStatusCancelled, ticket.PriceCents)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "resolve cancellation delta")
		}

		ticket.Status = enums.TicketStatusCancelled
		if err := repo.UpdateTicket(ctx, ticket); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "cancel ticket")
		}

		// A pending ticket was never credited; only a paid one moves money.
		if delta != 0 {
			if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
				HolderType:  enums.HolderTypeEvent,
				HolderID:    ticket.EventID,
				Type:        enums.LedgerEntryTicketReversal,
				AmountCents: delta,
				PaymentID:   ticket.PaymentID,
				TicketID:    &ticket.ID,
			}); err != nil {
				return err
			}
		}

		s.logger.Info().
			Str("ticket_id", ticket.ID.String()).
			Str("event_id", ticket.EventID.String()).
			Int("delta_cents", delta).
			Msg("ticket cancelled")

		out = ticket
		return nil
	})
	return out, err
}

// OnOrderCompleted creates the payout record and credits the seller's
// revenue, once per order.
func (s *Service) OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)

	if _, err := repo.FindPayoutByOrderID(ctx, order.ID); err == nil {
		return nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(errors.CodeInternal, err, "check existing payout")
	}

	confirmedAt := order.ConfirmedAt
	if confirmedAt == nil {
		confirmedAt = order.CompletedAt
	}

	payout := &models.Payout{
		ID:                  uuid.New(),
		OrderID:             &order.ID,
		SellerID:            order.SellerID,
		AmountCents:         order.PayoutCents,
		FeeCents:            order.PlatformFeeCents,
		NetCents:            order.PayoutCents,
		Status:              enums.PayoutStatusPending,
		DeliveryConfirmedAt: confirmedAt,
	}
	if err := repo.CreatePayout(ctx, payout); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "create payout")
	}

	if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
		HolderType:  enums.HolderTypeSeller,
		HolderID:    order.SellerID,
		Type:        enums.LedgerEntryOrderRevenue,
		AmountCents: order.PayoutCents,
		OrderID:     &order.ID,
		PayoutID:    &payout.ID,
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("payout_id", payout.ID.String()).
		Str("order_id", order.ID.String()).
		Int("net_cents", payout.NetCents).
		Msg("payout scheduled")

	return nil
}

// OnOrderCancelled neutralizes whatever the order already credited and
// retires its pending payout. The compensating entry is computed from the
// order's actual ledger trail, so a cancellation after partial bookkeeping
// still nets to zero.
func (s *Service) OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	entries, err := s.ledger.EntriesForOrder(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if net := ledger.Replay(entries); net != 0 {
		if _, err := s.ledger.Apply(ctx, tx, ledger.ApplyInput{
			HolderType:  enums.HolderTypeSeller,
			HolderID:    order.SellerID,
			Type:        enums.LedgerEntryOrderRevenueReversal,
			AmountCents: -net,
			OrderID:     &order.ID,
		}); err != nil {
			return err
		}
	}

	repo := s.repo.WithTx(tx)
	payout, err := repo.FindPayoutByOrderID(ctx, order.ID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errors.Wrap(errors.CodeInternal, err, "load payout for cancellation")
	}
	if payout.Status != enums.PayoutStatusPending {
		return errors.New(errors.CodeStateConflict, "payout already in flight, cannot cancel order").
			WithDetails(map[string]any{"payout_id": payout.ID.String(), "status": payout.Status.String()})
	}
	payout.Status = enums.PayoutStatusCancelled
	if err := repo.UpdatePayout(ctx, payout); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "cancel payout")
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("payout_id", payout.ID.String()).
		Msg("payout cancelled with order")

	return nil
}

// MaturePayouts moves pending payouts whose maturation window has elapsed
// into processing. Returns how many payouts matured.
func (s *Service) MaturePayouts(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.payout.MaturationWindow)
	candidates, err := s.repo.ListMaturePayouts(ctx, cutoff, 200)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "list mature payouts")
	}

	matured := 0
	var errs []error
	for _, candidate := range candidates {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			payout, err := repo.FindPayoutByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Someone else may have moved it between the scan and the lock.
			if payout.Status != enums.PayoutStatusPending {
				return nil
			}
			payout.Status = enums.PayoutStatusProcessing
			if err := repo.UpdatePayout(ctx, payout); err != nil {
				return err
			}
			matured++
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("payout_id", candidate.ID.String()).
				Msg("payout maturation failed")
			errs = append(errs, fmt.Errorf("payout %s: %w", candidate.ID, err))
		}
	}

	if matured > 0 {
		s.logger.Info().Int("matured", matured).Msg("payouts matured")
	}
	return matured, multierr.Combine(errs...)
}

// CompletePayout settles a processing payout and records the settlement in
// the ledger. The entry carries a zero delta: the revenue was credited when
// the order completed, the settlement only marks the money as moved out.
func (s *Service) CompletePayout(ctx context.Context, payoutID uuid.UUID, providerRef string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindPayoutByIDForUpdate(ctx, payoutID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "payout not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "load payout")
		}
		if payout.Status != enums.PayoutStatusProcessing {
			return errors.New(errors.CodeStateConflict, "payout is not processing").
				WithDetails(map[string]any{"payout_id": payout.ID.String(), "status": payout.Status.String()})
		}

		delta, err := ledger.PayoutDelta(payout.Status, enums.PayoutStatusCompleted)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "resolve settlement delta")
		}

		now := time.Now().UTC()
		payout.Status = enums.PayoutStatusCompleted
		payout.ProcessedAt = &now
		if ref := strings.TrimSpace(providerRef); ref != "" {
			payout.ProviderRef = &ref
		}
		if err := repo.UpdatePayout(ctx, payout); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "settle payout")
		}

		_, err = s.ledger.Apply(ctx, tx, ledger.ApplyInput{
			HolderType:  enums.HolderTypeSeller,
			HolderID:    payout.SellerID,
			Type:        enums.LedgerEntryPayoutSettlement,
			AmountCents: delta,
			OrderID:     payout.OrderID,
			PayoutID:    &payout.ID,
		})
		return err
	})
}

func newTicketNumber() string {
	return fmt.Sprintf("TKT-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}
