package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tkariuki-dev/sokohub-backend/api/routes"
	"github.com/tkariuki-dev/sokohub-backend/internal/dispatch"
	"github.com/tkariuki-dev/sokohub-backend/internal/ledger"
	"github.com/tkariuki-dev/sokohub-backend/internal/orders"
	"github.com/tkariuki-dev/sokohub-backend/internal/payments"
	"github.com/tkariuki-dev/sokohub-backend/internal/webhooks"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
	"github.com/tkariuki-dev/sokohub-backend/pkg/migrate"
	"github.com/tkariuki-dev/sokohub-backend/pkg/provider"
	"github.com/tkariuki-dev/sokohub-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	providerOpts := []provider.Option{provider.WithTimeout(cfg.Provider.Timeout)}
	if cfg.Provider.BaseURL != "" {
		providerOpts = append(providerOpts, provider.WithBaseURL(cfg.Provider.BaseURL))
	}
	providerClient, err := provider.NewClient(cfg.Provider.APIKey, providerOpts...)
	if err != nil {
		logg.Error(context.Background(), "failed to create provider client", err)
		os.Exit(1)
	}

	zl := logg.Zerolog()

	ledgerService := ledger.NewService(ledger.NewRepository(dbClient.DB()), zl)
	dispatchRepo := dispatch.NewRepository(dbClient.DB())
	dispatchService := dispatch.NewService(dispatchRepo, dbClient, ledgerService, cfg.Payout, zl)

	ordersService := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, cfg.Fees, zl)
	ordersService.BindSideEffects(dispatchService)

	paymentsService := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		dbClient,
		providerClient,
		dispatchService,
		ordersService,
		dispatchRepo,
		cfg.Payments,
		zl,
	)

	webhookGate := webhooks.NewService(
		webhooks.NewRepository(dbClient.DB()),
		redisClient,
		paymentsService,
		cfg.Webhook,
		zl,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, paymentsService, ordersService, dispatchService, webhookGate),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
