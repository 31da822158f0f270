package controllers

import (
	"net/http"

	"github.com/tqvinh-dev/salepoint-backend/api/responses"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SalePoint-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, database *db.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SalePoint-Env", cfg.App.Env)
		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not reachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
