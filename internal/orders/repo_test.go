package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  client_id TEXT,
  total_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  payout_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  is_debt INTEGER NOT NULL DEFAULT 0,
  is_seller_initiated INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  confirmed_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	history := `
CREATE TABLE IF NOT EXISTS order_status_histories (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  "trigger" TEXT NOT NULL,
  note TEXT,
  actor_id TEXT,
  actor_type TEXT NOT NULL,
  created_at DATETIME
);`
	audits := `
CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  subject_type TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  action TEXT NOT NULL,
  details TEXT,
  performed_by TEXT,
  actor_type TEXT NOT NULL DEFAULT 'system',
  created_at DATETIME
);`
	for _, ddl := range []string{orders, orderItems, history, audits} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	for _, table := range []string{"orders", "order_items", "order_status_histories", "audit_logs"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func TestRepository_CreateOrderWithItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "SOKO-REPO00001",
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		TotalCents:       50000,
		PlatformFeeCents: 4500,
		PayoutCents:      45500,
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusPending,
	}
	items := []models.OrderItem{
		{Name: "Ceramic water filter", UnitPriceCents: 25000, Qty: 2, SubtotalCents: 50000},
	}
	require.NoError(t, repo.CreateOrder(ctx, order, items))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "SOKO-REPO00001", found.OrderNumber)
	require.Len(t, found.Items, 1)
	assert.Equal(t, order.ID, found.Items[0].OrderID)
	assert.Equal(t, 50000, found.Items[0].SubtotalCents)
}

func TestRepository_HistoryRollsBackWithTransaction(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "SOKO-REPO00002",
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		TotalCents:    1000,
		PayoutCents:   910,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	require.NoError(t, repo.CreateOrder(ctx, order, nil))

	// A failed transition must leave neither the status change nor the
	// history row behind.
	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		order.Status = enums.OrderStatusProcessing
		if err := txRepo.Update(ctx, order); err != nil {
			return err
		}
		if err := txRepo.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    enums.OrderStatusProcessing,
			Trigger:   enums.TriggerPaymentCompleted,
			ActorType: enums.ActorTypeSystem,
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, reloaded.Status)

	history, err := repo.ListHistory(ctx, order.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRepository_AppendAndListHistory(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "SOKO-REPO00003",
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		TotalCents:    2000,
		PayoutCents:   1820,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	require.NoError(t, repo.CreateOrder(ctx, order, nil))

	statuses := []enums.OrderStatus{enums.OrderStatusProcessing, enums.OrderStatusReadyForPickup}
	triggers := []enums.OrderTrigger{enums.TriggerPaymentCompleted, enums.TriggerSellerMarksReady}
	for i := range statuses {
		require.NoError(t, repo.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    statuses[i],
			Trigger:   triggers[i],
			ActorType: enums.ActorTypeSystem,
		}))
	}

	history, err := repo.ListHistory(ctx, order.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, enums.OrderStatusProcessing, history[0].Status)
	assert.Equal(t, enums.OrderStatusReadyForPickup, history[1].Status)
}

func TestRepository_CreateAuditLog(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	entry := &models.AuditLog{
		SubjectType: "order",
		SubjectID:   uuid.New(),
		Action:      "transition_rejected",
		Details:     []byte(`{"trigger":"buyer_confirms_receipt"}`),
		ActorType:   enums.ActorTypeBuyer,
	}
	require.NoError(t, repo.CreateAuditLog(ctx, entry))

	var count int64
	require.NoError(t, db.Table("audit_logs").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
