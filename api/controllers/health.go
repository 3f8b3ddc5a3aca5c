package controllers

import (
	"net/http"

	"github.com/agrolinkhq/agrolink-backend/api/responses"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/redis"
)

// Healthz reports liveness.
func Healthz(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// Readyz checks the dependencies a request actually needs.
func Readyz(logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = err.Error()
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
			}
		}

		if len(checks) > 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
