package orders

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	"github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SideEffects fires once per order reaching a terminal settlement state,
// inside the transition's transaction.
type SideEffects interface {
	OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// ItemInput is one line-item snapshot captured at order creation.
type ItemInput struct {
	ProductID      *uuid.UUID
	Name           string
	UnitPriceCents int
	Qty            int
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	BuyerID           uuid.UUID
	SellerID          uuid.UUID
	ClientID          *uuid.UUID
	IsDebt            bool
	IsSellerInitiated bool
	Items             []ItemInput
	ActorID           *uuid.UUID
	ActorType         enums.ActorType
}

// ApplyInput describes one transition attempt against an order.
type ApplyInput struct {
	OrderID   uuid.UUID
	Trigger   enums.OrderTrigger
	ActorID   *uuid.UUID
	ActorType enums.ActorType
	Note      *string
}

// Service owns the order state machine.
type Service struct {
	repo        Repository
	tx          txRunner
	sideEffects SideEffects
	fees        config.FeesConfig
	logger      zerolog.Logger
}

// NewService wires the order state machine. sideEffects may be bound later
// via BindSideEffects when construction order requires it.
func NewService(repo Repository, tx txRunner, fees config.FeesConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		fees:   fees,
		logger: logger.With().Str("component", "orders").Logger(),
	}
}

// BindSideEffects attaches the dispatcher. Called once during wiring, before
// the service handles traffic.
func (s *Service) BindSideEffects(effects SideEffects) {
	s.sideEffects = effects
}

// CreateOrder persists the order with its item snapshots and the fee split.
// Debt orders move straight to DEBT_PENDING in the same transaction.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "buyer and seller are required")
	}
	if len(input.Items) == 0 {
		return nil, errors.New(errors.CodeValidation, "order needs at least one item")
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	total := 0
	for _, item := range input.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, errors.New(errors.CodeValidation, "item name is required")
		}
		if item.Qty <= 0 || item.UnitPriceCents < 0 {
			return nil, errors.New(errors.CodeValidation, "item quantity and price must be positive")
		}
		subtotal := item.UnitPriceCents * item.Qty
		total += subtotal
		items = append(items, models.OrderItem{
			ProductID:      item.ProductID,
			Name:           strings.TrimSpace(item.Name),
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			SubtotalCents:  subtotal,
		})
	}

	feeCents, payoutCents, err := s.splitFee(total)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       newOrderNumber(),
		BuyerID:           input.BuyerID,
		SellerID:          input.SellerID,
		ClientID:          input.ClientID,
		TotalCents:        total,
		PlatformFeeCents:  feeCents,
		PayoutCents:       payoutCents,
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusPending,
		IsDebt:            input.IsDebt,
		IsSellerInitiated: input.IsSellerInitiated,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order, items); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "create order")
		}
		if input.IsDebt {
			_, err := s.applyLocked(ctx, tx, order, ApplyInput{
				OrderID:   order.ID,
				Trigger:   enums.TriggerDebtRecorded,
				ActorID:   input.ActorID,
				ActorType: input.ActorType,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("total_cents", order.TotalCents).
		Bool("is_debt", order.IsDebt).
		Msg("order created")

	return order, nil
}

// splitFee carves the platform's cut out of the order total. Decimal keeps
// the percentage math exact before the final round to whole cents.
func (s *Service) splitFee(totalCents int) (feeCents, payoutCents int, err error) {
	pct, err := s.fees.PlatformFeePercentDecimal()
	if err != nil {
		return 0, 0, errors.Wrap(errors.CodeInternal, err, "resolve platform fee")
	}
	fee := decimal.NewFromInt(int64(totalCents)).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0)
	feeCents = int(fee.IntPart())
	return feeCents, totalCents - feeCents, nil
}

// Apply runs one transition in its own transaction. A rejected attempt rolls
// back and is then recorded in the audit log in a fresh transaction, so the
// rejection survives the rollback.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "order not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "load order")
		}
		order, err = s.applyLocked(ctx, tx, loaded, input)
		return err
	})
	if err != nil {
		if coded := errors.As(err); coded != nil && coded.Code() == errors.CodeStateConflict {
			s.recordRejectedAttempt(ctx, input, coded)
		}
		return nil, err
	}
	return order, nil
}

// ApplyInTx runs one transition inside the caller's transaction, locking the
// order row first. Used when a payment settlement and the order move must
// commit together.
func (s *Service) ApplyInTx(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "load order")
	}
	return s.applyLocked(ctx, tx, order, input)
}

func (s *Service) applyLocked(ctx context.Context, tx *gorm.DB, order *models.Order, input ApplyInput) (*models.Order, error) {
	if !input.Trigger.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid order trigger")
	}

	next, ok := NextStatus(order.Status, input.Trigger)
	if !ok {
		return nil, errors.New(errors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]any{
				"order_id": order.ID.String(),
				"from":     order.Status.String(),
				"trigger":  input.Trigger.String(),
			})
	}

	if next == enums.OrderStatusCompleted {
		if err := s.checkCompletionGuard(order, input.Trigger); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	from := order.Status
	order.Status = next
	switch next {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusCompleted:
		order.CompletedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Update(ctx, order); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "persist order transition")
	}
	if err := repo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    next,
		Trigger:   input.Trigger,
		Note:      input.Note,
		ActorID:   input.ActorID,
		ActorType: normalizeActor(input.ActorType),
	}); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "append order history")
	}

	if err := s.fireSideEffects(ctx, tx, order, next); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("from", from.String()).
		Str("to", next.String()).
		Str("trigger", input.Trigger.String()).
		Msg("order transitioned")

	return order, nil
}

// checkCompletionGuard enforces that money arrived before COMPLETED. Debt
// settlement is the deliberate exception: the debt flow records the
// obligation instead of a payment.
func (s *Service) checkCompletionGuard(order *models.Order, trigger enums.OrderTrigger) error {
	if trigger == enums.TriggerDebtSettled {
		return nil
	}
	if order.IsDebt && order.Status == enums.OrderStatusDebtPending {
		return nil
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return errors.New(errors.CodeStateConflict, "order cannot complete before payment settles").
			WithDetails(map[string]any{
				"order_id":       order.ID.String(),
				"payment_status": order.PaymentStatus.String(),
				"trigger":        trigger.String(),
			})
	}
	return nil
}

func (s *Service) fireSideEffects(ctx context.Context, tx *gorm.DB, order *models.Order, next enums.OrderStatus) error {
	if s.sideEffects == nil {
		return nil
	}
	switch next {
	case enums.OrderStatusCompleted:
		return s.sideEffects.OnOrderCompleted(ctx, tx, order)
	case enums.OrderStatusCancelled:
		return s.sideEffects.OnOrderCancelled(ctx, tx, order)
	}
	return nil
}

// recordRejectedAttempt writes the audit row for a refused transition. It
// runs after the failed transaction rolled back, on a fresh one, and is
// advisory: a logged failure here does not mask the original rejection.
func (s *Service) recordRejectedAttempt(ctx context.Context, input ApplyInput, cause *errors.Error) {
	details, _ := json.Marshal(map[string]any{
		"trigger": input.Trigger.String(),
		"reason":  cause.Error(),
	})
	entry := &models.AuditLog{
		SubjectType: "order",
		SubjectID:   input.OrderID,
		Action:      "transition_rejected",
		Details:     details,
		PerformedBy: input.ActorID,
		ActorType:   normalizeActor(input.ActorType),
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateAuditLog(ctx, entry)
	}); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", input.OrderID.String()).
			Msg("failed to audit rejected transition")
	}
}

// PaymentCompleted mirrors the settled payment onto the order and advances
// the state machine, all inside the reconciliation transaction. An order that
// already left the payable window keeps the settlement fact: the mirror is
// persisted and the refused transition becomes an audit row, so the
// reconciliation commits instead of rejecting every provider retry.
func (s *Service) PaymentCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, payment *models.Payment) error {
	order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "order referenced by payment not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "load order for payment settlement")
	}

	now := time.Now().UTC()
	order.PaymentStatus = enums.PaymentStatusCompleted
	order.PaidAt = &now

	_, err = s.applyLocked(ctx, tx, order, ApplyInput{
		OrderID:   orderID,
		Trigger:   enums.TriggerPaymentCompleted,
		ActorID:   nil,
		ActorType: enums.ActorTypeSystem,
	})
	if err != nil {
		return s.absorbLatePaymentEvent(ctx, tx, order, payment, enums.TriggerPaymentCompleted, err)
	}
	return nil
}

// PaymentFailed mirrors the failed payment onto the order and fails it.
func (s *Service) PaymentFailed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, payment *models.Payment) error {
	order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "order referenced by payment not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "load order for payment failure")
	}

	order.PaymentStatus = enums.PaymentStatusFailed

	_, err = s.applyLocked(ctx, tx, order, ApplyInput{
		OrderID:   orderID,
		Trigger:   enums.TriggerPaymentFailed,
		ActorType: enums.ActorTypeSystem,
	})
	if err != nil {
		return s.absorbLatePaymentEvent(ctx, tx, order, payment, enums.TriggerPaymentFailed, err)
	}
	return nil
}

// absorbLatePaymentEvent handles a payment outcome that arrived after the
// order went terminal. The payment mirror still commits and the refused move
// is audited in the same transaction. Anything other than a state conflict
// propagates unchanged.
func (s *Service) absorbLatePaymentEvent(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, trigger enums.OrderTrigger, cause error) error {
	coded := errors.As(cause)
	if coded == nil || coded.Code() != errors.CodeStateConflict {
		return cause
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Update(ctx, order); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "persist payment mirror")
	}

	details, _ := json.Marshal(map[string]any{
		"payment_id": payment.ID.String(),
		"trigger":    trigger.String(),
		"reason":     coded.Error(),
	})
	if err := repo.CreateAuditLog(ctx, &models.AuditLog{
		SubjectType: "order",
		SubjectID:   order.ID,
		Action:      "late_" + trigger.String(),
		Details:     details,
		ActorType:   enums.ActorTypeSystem,
	}); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "audit late payment event")
	}

	s.logger.Warn().
		Str("order_id", order.ID.String()).
		Str("payment_id", payment.ID.String()).
		Str("order_status", order.Status.String()).
		Str("trigger", trigger.String()).
		Msg("payment outcome arrived after order went terminal")

	return nil
}

// GetOrder loads the order with its item snapshots.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "load order")
	}
	return order, nil
}

// History returns the order's transition log, oldest first. A limit of zero
// returns the full log.
func (s *Service) History(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderStatusHistory, error) {
	entries, err := s.repo.ListHistory(ctx, orderID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "list order history")
	}
	return entries, nil
}

func normalizeActor(actor enums.ActorType) enums.ActorType {
	if !actor.IsValid() {
		return enums.ActorTypeSystem
	}
	return actor
}

func newOrderNumber() string {
	return fmt.Sprintf("SOKO-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}
