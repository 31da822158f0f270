package controllers

import (
	"net/http"

	"github.com/tqvinh-dev/salepoint-backend/api/responses"
	"github.com/tqvinh-dev/salepoint-backend/api/validators"
	"github.com/tqvinh-dev/salepoint-backend/internal/checkout"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

// QRPaymentWebhook receives the payment gateway's success callback. The
// response is 200 regardless of whether a session was waiting, so the
// gateway never retries a settled transaction.
func QRPaymentWebhook(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		var payload qrWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := mgr.NotifyPaymentSuccess(r.Context(), payload.TransactionUUID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}

type qrWebhookRequest struct {
	TransactionUUID string  `json:"transaction_uuid" validate:"required"`
	Status          string  `json:"status,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
}
