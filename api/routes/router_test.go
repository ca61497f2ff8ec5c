package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	internalorders "github.com/tkariuki-dev/sokohub-backend/internal/orders"
	internalpayments "github.com/tkariuki-dev/sokohub-backend/internal/payments"
	internalwebhooks "github.com/tkariuki-dev/sokohub-backend/internal/webhooks"
	pkgAuth "github.com/tkariuki-dev/sokohub-backend/pkg/auth"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db/models"
	"github.com/tkariuki-dev/sokohub-backend/pkg/enums"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPaymentsService struct {
	payment *models.Payment
}

func (s stubPaymentsService) Initiate(ctx context.Context, input internalpayments.InitiateInput) (*models.Payment, error) {
	return s.payment, nil
}

func (s stubPaymentsService) Reconcile(ctx context.Context, input internalpayments.ReconcileInput) (*internalpayments.ReconcileOutcome, error) {
	return &internalpayments.ReconcileOutcome{Payment: s.payment, Applied: true, KnownStatus: true}, nil
}

func (s stubPaymentsService) GetPaymentStatus(ctx context.Context, correlationKey string) (*internalpayments.StatusView, error) {
	if s.payment == nil || s.payment.InvoiceID != correlationKey {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return &internalpayments.StatusView{Payment: s.payment}, nil
}

type stubTicketCanceller struct {
	cancelled []uuid.UUID
}

func (s *stubTicketCanceller) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	s.cancelled = append(s.cancelled, ticketID)
	return &models.Ticket{ID: ticketID, Status: enums.TicketStatusCancelled}, nil
}

type stubWebhookGate struct {
	inputs []internalwebhooks.EventInput
}

func (s *stubWebhookGate) HandlePaymentEvent(ctx context.Context, input internalwebhooks.EventInput) (*internalpayments.ReconcileOutcome, error) {
	s.inputs = append(s.inputs, input)
	if input.CorrelationKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "correlation key missing")
	}
	return &internalpayments.ReconcileOutcome{
		To:      enums.PaymentStatusCompleted,
		Applied: true,
	}, nil
}

type stubOrdersRepo struct {
	orders  map[uuid.UUID]*models.Order
	history []models.OrderStatusHistory
	audits  []models.AuditLog
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) internalorders.Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.Items = items
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) Update(ctx context.Context, order *models.Order) error {
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *stubOrdersRepo) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubOrdersRepo) ListHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderStatusHistory, error) {
	var out []models.OrderStatusHistory
	for _, entry := range s.history {
		if entry.OrderID == orderID {
			out = append(out, entry)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubOrdersRepo) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	s.audits = append(s.audits, *entry)
	return nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "sokohub-test",
			ExpirationMinutes: 15,
		},
		Fees: config.FeesConfig{PlatformFeePercent: "9"},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "routes-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})
}

func newTestRouter(t *testing.T, repo *stubOrdersRepo, gate *stubWebhookGate, payment *models.Payment) http.Handler {
	router, _ := newTestRouterWithTickets(t, repo, gate, payment)
	return router
}

func newTestRouterWithTickets(t *testing.T, repo *stubOrdersRepo, gate *stubWebhookGate, payment *models.Payment) (http.Handler, *stubTicketCanceller) {
	t.Helper()

	cfg := testConfig()
	logg := testLogger()
	ordersService := internalorders.NewService(repo, passthroughTxRunner{}, cfg.Fees, zerolog.Nop())
	canceller := &stubTicketCanceller{}

	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		nil,
		stubPaymentsService{payment: payment},
		ordersService,
		canceller,
		gate,
	), canceller
}

func mintToken(t *testing.T, cfg *config.Config, role enums.ActorType) string {
	t.Helper()

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouterHealthAndPublicRoutes(t *testing.T) {
	router := newTestRouter(t, newStubOrdersRepo(), &stubWebhookGate{}, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/api/public/ping"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRouterRequiresAuthOnPrivateRoutes(t *testing.T) {
	router := newTestRouter(t, newStubOrdersRepo(), &stubWebhookGate{}, nil)

	paths := []string{
		"/api/v1/ping",
		"/api/v1/payments/INV-ABC/status",
		fmt.Sprintf("/api/v1/orders/%s", uuid.New()),
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token status = %d, want %d", path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRouterWebhookSkipsAuth(t *testing.T) {
	gate := &stubWebhookGate{}
	router := newTestRouter(t, newStubOrdersRepo(), gate, nil)

	body := strings.NewReader(`{"invoice_id":"INV-123","state":"COMPLETE","mpesa_reference":"QQ12"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", body)
	req.RemoteAddr = "203.0.113.9:4411"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(gate.inputs) != 1 {
		t.Fatalf("gate received %d events, want 1", len(gate.inputs))
	}
	got := gate.inputs[0]
	if got.CorrelationKey != "INV-123" {
		t.Errorf("correlation key = %q, want INV-123", got.CorrelationKey)
	}
	if got.SourceAddress != "203.0.113.9" {
		t.Errorf("source address = %q, want 203.0.113.9", got.SourceAddress)
	}
	if got.ProviderTxRef != "QQ12" {
		t.Errorf("provider tx ref = %q, want QQ12", got.ProviderTxRef)
	}
}

func TestRouterPaymentStatusWithToken(t *testing.T) {
	payment := &models.Payment{
		ID:          uuid.New(),
		InvoiceID:   "INV-KNOWN",
		Status:      enums.PaymentStatusCompleted,
		Method:      enums.PaymentMethodMobileMoney,
		AmountCents: 50000,
		Currency:    "KES",
	}
	router := newTestRouter(t, newStubOrdersRepo(), &stubWebhookGate{}, payment)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/INV-KNOWN/status", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorTypeBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "INV-KNOWN") {
		t.Errorf("body missing invoice id: %s", rec.Body.String())
	}
}

func TestRouterOrderTransition(t *testing.T) {
	repo := newStubOrdersRepo()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "SOKO-TEST00001",
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		TotalCents:    50000,
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusCompleted,
	}
	repo.orders[order.ID] = order
	router := newTestRouter(t, repo, &stubWebhookGate{}, nil)

	body := strings.NewReader(`{"trigger":"seller_marks_ready"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/transitions", order.ID), body)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorTypeSeller))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	updated := repo.orders[order.ID]
	if updated.Status != enums.OrderStatusReadyForPickup {
		t.Errorf("order status = %s, want %s", updated.Status, enums.OrderStatusReadyForPickup)
	}
}

func TestRouterTicketCancellation(t *testing.T) {
	router, canceller := newTestRouterWithTickets(t, newStubOrdersRepo(), &stubWebhookGate{}, nil)
	ticketID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tickets/%s/cancel", ticketID), nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorTypeSeller))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != ticketID {
		t.Fatalf("canceller received %v, want [%s]", canceller.cancelled, ticketID)
	}
	if !strings.Contains(rec.Body.String(), "cancelled") {
		t.Errorf("body missing cancelled status: %s", rec.Body.String())
	}
}

func TestRouterRejectsPipelineTriggers(t *testing.T) {
	repo := newStubOrdersRepo()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "SOKO-TEST00003",
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		Status:      enums.OrderStatusPending,
	}
	repo.orders[order.ID] = order
	router := newTestRouter(t, repo, &stubWebhookGate{}, nil)

	for _, trigger := range []string{"payment_completed", "payment_failed", "debt_recorded"} {
		body := strings.NewReader(fmt.Sprintf(`{"trigger":%q}`, trigger))
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/transitions", order.ID), body)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorTypeBuyer))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("trigger %s status = %d, want %d (body %s)", trigger, rec.Code, http.StatusForbidden, rec.Body.String())
		}
	}
	if repo.orders[order.ID].Status != enums.OrderStatusPending {
		t.Errorf("order status changed by a rejected trigger")
	}
}

func TestRouterForceCompleteNeedsAdmin(t *testing.T) {
	repo := newStubOrdersRepo()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "SOKO-TEST00002",
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		Status:      enums.OrderStatusProcessing,
	}
	repo.orders[order.ID] = order
	router := newTestRouter(t, repo, &stubWebhookGate{}, nil)

	body := strings.NewReader(`{"trigger":"admin_force_complete"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/orders/%s/transitions", order.ID), body)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testConfig(), enums.ActorTypeSeller))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusForbidden, rec.Body.String())
	}
	if repo.orders[order.ID].Status != enums.OrderStatusProcessing {
		t.Errorf("order status changed on rejected request")
	}
}
