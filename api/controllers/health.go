package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	"github.com/tkariuki-dev/sokohub-backend/pkg/config"
	"github.com/tkariuki-dev/sokohub-backend/pkg/db"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
	"github.com/tkariuki-dev/sokohub-backend/pkg/redis"
)

const readinessTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SokoHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SokoHub-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true

		if dbP == nil {
			checks["database"] = "not configured"
			healthy = false
		} else if err := dbP.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			healthy = false
			logg.Error(ctx, "readiness database ping failed", err)
		}

		if redisP == nil {
			checks["redis"] = "not configured"
			healthy = false
		} else if err := redisP.Ping(ctx); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
			logg.Error(ctx, "readiness redis ping failed", err)
		}

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "service dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
