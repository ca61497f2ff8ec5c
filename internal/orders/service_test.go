package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
)

type stubOrdersRepo struct {
	orders  map[uuid.UUID]*models.Order
	history []models.OrderStatusHistory
	audits  []models.AuditLog
}

func newStubOrdersRepo(orders ...*models.Order) *stubOrdersRepo {
	repo := &stubOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.Items = items
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) Update(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubOrdersRepo) ListHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderStatusHistory, error) {
	var entries []models.OrderStatusHistory
	for _, h := range s.history {
		if h.OrderID == orderID {
			entries = append(entries, h)
		}
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (s *stubOrdersRepo) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.audits = append(s.audits, *entry)
	return nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingSideEffects struct {
	completed []uuid.UUID
	cancelled []uuid.UUID
}

func (r *recordingSideEffects) OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	r.completed = append(r.completed, order.ID)
	return nil
}

func (r *recordingSideEffects) OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	r.cancelled = append(r.cancelled, order.ID)
	return nil
}

func newTestOrdersService(repo Repository) (*Service, *recordingSideEffects) {
	svc := NewService(repo, passthroughTxRunner{}, config.FeesConfig{PlatformFeePercent: "9"}, zerolog.Nop())
	effects := &recordingSideEffects{}
	svc.BindSideEffects(effects)
	return svc, effects
}

func stubOrder(status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "SOKO-TEST00001",
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		TotalCents:       50000,
		PlatformFeeCents: 4500,
		PayoutCents:      45500,
		Status:           status,
		PaymentStatus:    enums.PaymentStatusPending,
	}
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		trigger enums.OrderTrigger
		want    enums.OrderStatus
		ok      bool
	}{
		{enums.OrderStatusPending, enums.TriggerPaymentCompleted, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPending, enums.TriggerPaymentFailed, enums.OrderStatusFailed, true},
		{enums.OrderStatusPending, enums.TriggerDebtRecorded, enums.OrderStatusDebtPending, true},
		{enums.OrderStatusProcessing, enums.TriggerDeliveryStarted, enums.OrderStatusDeliveryPending, true},
		{enums.OrderStatusDeliveryPending, enums.TriggerSellerMarksDelivered, enums.OrderStatusDeliveryComplete, true},
		{enums.OrderStatusDeliveryComplete, enums.TriggerBuyerConfirmsReceipt, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusClientPaymentPending, enums.TriggerPaymentCompleted, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusConfirmed, enums.TriggerBuyerConfirmsReceipt, enums.OrderStatusCompleted, true},
		{enums.OrderStatusDebtPending, enums.TriggerDebtSettled, enums.OrderStatusCompleted, true},
		{enums.OrderStatusProcessing, enums.TriggerCancellationRequested, enums.OrderStatusCancelled, true},
		{enums.OrderStatusDebtPending, enums.TriggerAdminForceComplete, enums.OrderStatusCompleted, true},
		{enums.OrderStatusPending, enums.TriggerBuyerConfirmsReceipt, "", false},
		{enums.OrderStatusCompleted, enums.TriggerCancellationRequested, "", false},
		{enums.OrderStatusCancelled, enums.TriggerPaymentCompleted, "", false},
		{enums.OrderStatusFailed, enums.TriggerAdminForceComplete, "", false},
	}
	for _, tc := range cases {
		got, ok := NextStatus(tc.from, tc.trigger)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("NextStatus(%s, %s) = (%s, %v), want (%s, %v)", tc.from, tc.trigger, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCreateOrder_SplitsFee(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, _ := newTestOrdersService(repo)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Items: []ItemInput{
			{Name: "Solar lantern", UnitPriceCents: 25000, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.TotalCents != 50000 {
		t.Fatalf("unexpected total %d", order.TotalCents)
	}
	if order.PlatformFeeCents != 4500 {
		t.Fatalf("unexpected fee %d", order.PlatformFeeCents)
	}
	if order.PayoutCents != 45500 {
		t.Fatalf("unexpected payout %d", order.PayoutCents)
	}
	if order.PlatformFeeCents+order.PayoutCents != order.TotalCents {
		t.Fatal("fee split must preserve the total")
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestCreateOrder_DebtStartsInDebtPending(t *testing.T) {
	repo := newStubOrdersRepo()
	svc, _ := newTestOrdersService(repo)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:           uuid.New(),
		SellerID:          uuid.New(),
		IsDebt:            true,
		IsSellerInitiated: true,
		ActorType:         enums.ActorTypeSeller,
		Items: []ItemInput{
			{Name: "Maize flour, 50kg", UnitPriceCents: 320000, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != enums.OrderStatusDebtPending {
		t.Fatalf("unexpected status %s", order.Status)
	}

	history, err := svc.History(context.Background(), order.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Trigger != enums.TriggerDebtRecorded {
		t.Fatalf("expected one debt_recorded history row, got %v", history)
	}
}

func TestApply_CompletionGuardBlocksUnpaidOrder(t *testing.T) {
	order := stubOrder(enums.OrderStatusConfirmed)
	repo := newStubOrdersRepo(order)
	svc, effects := newTestOrdersService(repo)

	_, err := svc.Apply(context.Background(), ApplyInput{
		OrderID:   order.ID,
		Trigger:   enums.TriggerBuyerConfirmsReceipt,
		ActorType: enums.ActorTypeBuyer,
	})
	if err == nil {
		t.Fatal("expected guard to reject completion")
	}
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("order moved to %s", order.Status)
	}
	if len(effects.completed) != 0 {
		t.Fatal("side effects fired for a rejected transition")
	}
	if len(repo.audits) != 1 || repo.audits[0].Action != "transition_rejected" {
		t.Fatalf("expected one rejection audit row, got %v", repo.audits)
	}
}

func TestApply_CompletionAfterPaymentFiresSideEffects(t *testing.T) {
	order := stubOrder(enums.OrderStatusConfirmed)
	order.PaymentStatus = enums.PaymentStatusCompleted
	repo := newStubOrdersRepo(order)
	svc, effects := newTestOrdersService(repo)

	got, err := svc.Apply(context.Background(), ApplyInput{
		OrderID:   order.ID,
		Trigger:   enums.TriggerBuyerConfirmsReceipt,
		ActorType: enums.ActorTypeBuyer,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != enums.OrderStatusCompleted {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if len(effects.completed) != 1 || effects.completed[0] != order.ID {
		t.Fatalf("expected one completion side effect, got %v", effects.completed)
	}
}

func TestApply_DebtSettlementBypassesPaymentGuard(t *testing.T) {
	order := stubOrder(enums.OrderStatusDebtPending)
	order.IsDebt = true
	repo := newStubOrdersRepo(order)
	svc, effects := newTestOrdersService(repo)

	got, err := svc.Apply(context.Background(), ApplyInput{
		OrderID:   order.ID,
		Trigger:   enums.TriggerDebtSettled,
		ActorType: enums.ActorTypeSeller,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != enums.OrderStatusCompleted {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if len(effects.completed) != 1 {
		t.Fatal("expected completion side effect for settled debt")
	}
}

func TestApply_CancellationFiresCancellationEffects(t *testing.T) {
	order := stubOrder(enums.OrderStatusProcessing)
	repo := newStubOrdersRepo(order)
	svc, effects := newTestOrdersService(repo)

	got, err := svc.Apply(context.Background(), ApplyInput{
		OrderID:   order.ID,
		Trigger:   enums.TriggerCancellationRequested,
		ActorType: enums.ActorTypeBuyer,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.CancelledAt == nil {
		t.Fatal("expected cancellation timestamp")
	}
	if len(effects.cancelled) != 1 {
		t.Fatal("expected cancellation side effect")
	}
}

func TestApply_TerminalOrderRejectsEverything(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled, enums.OrderStatusFailed} {
		order := stubOrder(status)
		repo := newStubOrdersRepo(order)
		svc, _ := newTestOrdersService(repo)

		_, err := svc.Apply(context.Background(), ApplyInput{
			OrderID:   order.ID,
			Trigger:   enums.TriggerCancellationRequested,
			ActorType: enums.ActorTypeAdmin,
		})
		if err == nil {
			t.Fatalf("expected rejection from terminal status %s", status)
		}
	}
}

func TestPaymentCompleted_AdvancesOrderAndMirrorsStatus(t *testing.T) {
	order := stubOrder(enums.OrderStatusPending)
	repo := newStubOrdersRepo(order)
	svc, _ := newTestOrdersService(repo)

	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted}
	if err := svc.PaymentCompleted(context.Background(), nil, order.ID, payment); err != nil {
		t.Fatalf("payment completed: %v", err)
	}
	if order.Status != enums.OrderStatusProcessing {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("payment status not mirrored, got %s", order.PaymentStatus)
	}
	if order.PaidAt == nil {
		t.Fatal("expected paid timestamp")
	}
}

func TestPaymentCompleted_AfterCancellationKeepsSettlementFact(t *testing.T) {
	order := stubOrder(enums.OrderStatusProcessing)
	order.PaymentStatus = enums.PaymentStatusPending
	repo := newStubOrdersRepo(order)
	svc, effects := newTestOrdersService(repo)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, ApplyInput{
		OrderID:   order.ID,
		Trigger:   enums.TriggerCancellationRequested,
		ActorType: enums.ActorTypeBuyer,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The provider settles the in-flight charge after the cancellation.
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted}
	if err := svc.PaymentCompleted(ctx, nil, order.ID, payment); err != nil {
		t.Fatalf("late settlement must not fail the reconciliation: %v", err)
	}
	if err := svc.PaymentCompleted(ctx, nil, order.ID, payment); err != nil {
		t.Fatalf("repeated settlement event: %v", err)
	}

	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order moved to %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("settlement fact lost, payment status %s", order.PaymentStatus)
	}
	if order.PaidAt == nil {
		t.Fatal("expected paid timestamp")
	}
	if len(effects.completed) != 0 {
		t.Fatal("completion side effects must not fire for a cancelled order")
	}

	found := false
	for _, audit := range repo.audits {
		if audit.Action == "late_payment_completed" && audit.SubjectID == order.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a late settlement audit row, got %v", repo.audits)
	}
}

func TestPaymentFailed_AfterCancellationIsAbsorbed(t *testing.T) {
	order := stubOrder(enums.OrderStatusCancelled)
	repo := newStubOrdersRepo(order)
	svc, _ := newTestOrdersService(repo)

	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusFailed}
	if err := svc.PaymentFailed(context.Background(), nil, order.ID, payment); err != nil {
		t.Fatalf("late failure must not fail the reconciliation: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order moved to %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("failure fact lost, payment status %s", order.PaymentStatus)
	}
	if len(repo.audits) != 1 || repo.audits[0].Action != "late_payment_failed" {
		t.Fatalf("expected one late failure audit row, got %v", repo.audits)
	}
}

func TestPaymentFailed_FailsPendingOrder(t *testing.T) {
	order := stubOrder(enums.OrderStatusPending)
	repo := newStubOrdersRepo(order)
	svc, _ := newTestOrdersService(repo)

	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusFailed}
	if err := svc.PaymentFailed(context.Background(), nil, order.ID, payment); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if order.Status != enums.OrderStatusFailed {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestApply_HistoryChroniclesFullLifecycle(t *testing.T) {
	order := stubOrder(enums.OrderStatusPending)
	repo := newStubOrdersRepo(order)
	svc, _ := newTestOrdersService(repo)
	ctx := context.Background()

	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusCompleted}
	if err := svc.PaymentCompleted(ctx, nil, order.ID, payment); err != nil {
		t.Fatalf("payment completed: %v", err)
	}

	steps := []enums.OrderTrigger{
		enums.TriggerSellerMarksReady,
		enums.TriggerBuyerConfirmsReceipt,
		enums.TriggerBuyerConfirmsReceipt,
	}
	for _, trigger := range steps {
		if _, err := svc.Apply(ctx, ApplyInput{OrderID: order.ID, Trigger: trigger, ActorType: enums.ActorTypeBuyer}); err != nil {
			t.Fatalf("apply %s: %v", trigger, err)
		}
	}

	if order.Status != enums.OrderStatusCompleted {
		t.Fatalf("unexpected final status %s", order.Status)
	}

	history, err := svc.History(ctx, order.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantStatuses := []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusConfirmed,
		enums.OrderStatusCompleted,
	}
	if len(history) != len(wantStatuses) {
		t.Fatalf("expected %d history rows, got %d", len(wantStatuses), len(history))
	}
	for i, want := range wantStatuses {
		if history[i].Status != want {
			t.Fatalf("history[%d] = %s, want %s", i, history[i].Status, want)
		}
	}
}
