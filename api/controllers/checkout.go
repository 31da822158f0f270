package controllers

import (
	"net/http"

	"github.com/tqvinh-dev/salepoint-backend/api/middleware"
	"github.com/tqvinh-dev/salepoint-backend/api/responses"
	"github.com/tqvinh-dev/salepoint-backend/api/validators"
	"github.com/tqvinh-dev/salepoint-backend/internal/checkout"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

func requireTerminal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	terminalID := middleware.TerminalIDFromContext(r.Context())
	if terminalID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "terminal context missing"))
		return "", false
	}
	return terminalID, true
}

// CheckoutBegin snapshots the cart and opens the receipt preview.
func CheckoutBegin(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}

		// Everything in the begin payload is optional.
		var payload beginCheckoutRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		view, err := mgr.Begin(r.Context(), terminalID, checkout.BeginInput{
			CustomerName: payload.CustomerName,
			TableID:      payload.TableID,
			CachedTotal:  payload.CachedTotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutConfirmPreview advances from the preview to payment selection.
func CheckoutConfirmPreview(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.ConfirmPreview(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutCancel abandons the in-flight checkout.
func CheckoutCancel(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.Cancel(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSelectCash moves to the cash tender screen.
func CheckoutSelectCash(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.SelectCash(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutCompleteCash records the tendered amount and finishes the sale.
func CheckoutCompleteCash(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}

		var payload completeCashRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := mgr.CompleteCash(r.Context(), terminalID, payload.AmountReceived)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSelectQR requests a QR payload and starts the payment wait.
func CheckoutSelectQR(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.SelectQR(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutCompleteQR is the cashier's manual confirmation of a QR payment.
func CheckoutCompleteQR(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.CompleteQR(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutCancelQR backs out of the QR wait to payment selection.
func CheckoutCancelQR(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.CancelQR(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutSelectEInvoice routes the sale through invoice issuance.
func CheckoutSelectEInvoice(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}

		// The method id is optional; an empty body means plain e-invoice.
		var payload selectEInvoiceRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var view checkout.View
		var err error
		if payload.MethodID != "" {
			view, err = mgr.SelectOther(r.Context(), terminalID, payload.MethodID)
		} else {
			view, err = mgr.SelectEInvoice(r.Context(), terminalID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutIssueNow publishes the e-invoice and finishes the sale.
func CheckoutIssueNow(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}

		var payload invoiceDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := mgr.IssueNow(r.Context(), terminalID, payload.toDetails())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutIssueLater stores a draft invoice and finishes the sale.
func CheckoutIssueLater(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}

		var payload invoiceDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := mgr.IssueLater(r.Context(), terminalID, payload.toDetails())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutCloseReceipt ends the session and clears the live cart.
func CheckoutCloseReceipt(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		view, err := mgr.CloseReceipt(r.Context(), terminalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CheckoutState returns the terminal's current checkout view.
func CheckoutState(mgr *checkout.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terminalID, ok := requireTerminal(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, mgr.State(terminalID))
	}
}

type beginCheckoutRequest struct {
	CustomerName string   `json:"customer_name"`
	TableID      *string  `json:"table_id,omitempty"`
	CachedTotal  *float64 `json:"cached_total,omitempty"`
}

type completeCashRequest struct {
	AmountReceived float64 `json:"amount_received" validate:"required,gt=0"`
}

type selectEInvoiceRequest struct {
	MethodID string `json:"method_id,omitempty"`
}

type invoiceDetailsRequest struct {
	IssuerCode      string  `json:"issuer_code" validate:"required"`
	TemplateCode    string  `json:"template_code" validate:"required"`
	CustomerName    string  `json:"customer_name" validate:"required"`
	CustomerTaxCode *string `json:"customer_tax_code,omitempty"`
	CustomerAddress *string `json:"customer_address,omitempty"`
	CustomerEmail   string  `json:"customer_email,omitempty" validate:"omitempty,email"`
}

func (p invoiceDetailsRequest) toDetails() checkout.InvoiceDetails {
	return checkout.InvoiceDetails{
		IssuerCode:      p.IssuerCode,
		TemplateCode:    p.TemplateCode,
		CustomerName:    p.CustomerName,
		CustomerTaxCode: p.CustomerTaxCode,
		CustomerAddress: p.CustomerAddress,
		CustomerEmail:   p.CustomerEmail,
	}
}
