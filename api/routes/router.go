package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tkariuki-dev/sokohub-backend/api/controllers"
	ordercontrollers "github.com/tkariuki-dev/sokohub-backend/api/controllers/orders"
	paymentcontrollers "github.com/tkariuki-dev/sokohub-backend/api/controllers/payments"
	ticketcontrollers "github.com/tkariuki-dev/sokohub-backend/api/controllers/tickets"
	webhookcontrollers "github.com/tkariuki-dev/sokohub-backend/api/controllers/webhooks"
	"github.com/tkariuki-dev/sokohub-backend/api/middleware"
	internalorders "github.com/tkariuki-dev/sokohub-backend/internal/orders"
	internalpayments "github.com/tkariuki-dev/sokohub-backend/internal/payments"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
	"github.com/tkariuki-dev/sokohub-backend/pkg/redis"
)

// requestStore bundles the redis operations the request middlewares ride on.
// A nil store disables rate limiting and idempotency replay.
type requestStore interface {
	middleware.RateLimiterStore
	redis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	store requestStore,
	paymentsService internalpayments.Service,
	ordersService *internalorders.Service,
	ticketsService ticketcontrollers.TicketCanceller,
	webhookGate webhookcontrollers.PaymentEventGate,
) http.Handler {
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.WebhookWindow, cfg.RateLimit.WebhookIPLimit)
	paymentPolicy := middleware.NewRateLimitPolicy("payments", cfg.RateLimit.PaymentWindow, cfg.RateLimit.PaymentUserLimit)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Provider callbacks authenticate via the webhook gate's own screening,
	// not via user tokens.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(webhookPolicy, store, logg)).
			Post("/payments", webhookcontrollers.PaymentWebhook(webhookGate, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RateLimitByUser(paymentPolicy, store, logg)).
				Post("/", paymentcontrollers.Initiate(paymentsService, logg))
			r.Get("/{correlationId}/status", paymentcontrollers.Status(paymentsService, logg))
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/{ticketId}/cancel", ticketcontrollers.Cancel(ticketsService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(ordersService, logg))
			r.Post("/{orderId}/transitions", ordercontrollers.Transition(ordersService, logg))
		})
	})

	return r
}
