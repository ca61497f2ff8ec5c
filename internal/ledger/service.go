package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	"github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

// ApplyInput describes one signed balance movement. The entry row and the
// holder balance update are written together in the caller's transaction.
type ApplyInput struct {
	HolderType enums.HolderType
	HolderID   uuid.UUID
	Type       enums.LedgerEntryType
	AmountCents int

	PaymentID *uuid.UUID
	OrderID   *uuid.UUID
	TicketID  *uuid.UUID
	PayoutID  *uuid.UUID
	Metadata  json.RawMessage
}

// Service records ledger entries and keeps holder balances in step with them.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Apply appends an entry and moves the holder balance by the same amount,
// inside the supplied transaction. Both writes succeed or neither does.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.LedgerEntry, error) {
	if !input.HolderType.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid ledger holder type")
	}
	if !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid ledger entry type")
	}
	if input.HolderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "ledger holder id is required")
	}

	repo := s.repo.WithTx(tx)

	entry := &models.LedgerEntry{
		HolderType:  input.HolderType,
		HolderID:    input.HolderID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		PaymentID:   input.PaymentID,
		OrderID:     input.OrderID,
		TicketID:    input.TicketID,
		PayoutID:    input.PayoutID,
		Metadata:    input.Metadata,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "create ledger entry")
	}
	if err := repo.ApplyBalanceDelta(ctx, input.HolderType, input.HolderID, input.AmountCents); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "apply balance delta")
	}

	s.logger.Debug().
		Str("holder_type", input.HolderType.String()).
		Str("holder_id", input.HolderID.String()).
		Str("entry_type", input.Type.String()).
		Int("amount_cents", input.AmountCents).
		Msg("ledger entry applied")

	return entry, nil
}

// EntriesForOrder returns every entry referencing the order, oldest first.
func (s *Service) EntriesForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	entries, err := s.repo.WithTx(tx).ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "list ledger entries for order")
	}
	return entries, nil
}

// EntriesForHolder returns the holder's full entry history, oldest first.
func (s *Service) EntriesForHolder(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) ([]models.LedgerEntry, error) {
	entries, err := s.repo.ListByHolder(ctx, holderType, holderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "list ledger entries for holder")
	}
	return entries, nil
}

// HolderBalance reads the current stored balance for a holder.
func (s *Service) HolderBalance(ctx context.Context, holderType enums.HolderType, holderID uuid.UUID) (int, error) {
	balance, err := s.repo.HolderBalance(ctx, holderType, holderID)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "read holder balance")
	}
	return balance, nil
}

// Replay sums a holder's entries from scratch. Auditing compares this against
// the stored balance; the two must agree at any point in time.
func Replay(entries []models.LedgerEntry) int {
	total := 0
	for _, e := range entries {
		total += e.AmountCents
	}
	return total
}
