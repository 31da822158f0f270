package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/api/responses"
	"github.com/tqvinh-dev/salepoint-backend/api/validators"
	"github.com/tqvinh-dev/salepoint-backend/pkg/auth"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

// TerminalToken mints a terminal JWT. Only mounted in dev; production
// terminals are provisioned out of band.
func TerminalToken(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.App.IsDev() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "token minting is disabled"))
			return
		}

		var payload terminalTokenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := auth.MintTerminalToken(cfg.JWT, time.Now(), auth.TerminalTokenPayload{
			TerminalID: payload.TerminalID,
			TenantID:   payload.TenantID,
			JTI:        uuid.NewString(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint terminal token"))
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"token":      token,
			"expires_in": cfg.JWT.TokenTTL().String(),
		})
	}
}

type terminalTokenRequest struct {
	TerminalID string `json:"terminal_id" validate:"required"`
	TenantID   string `json:"tenant_id,omitempty"`
}
