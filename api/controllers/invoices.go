package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/api/responses"
	"github.com/tqvinh-dev/salepoint-backend/internal/invoices"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/taxreg"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

// InvoiceGet returns one stored invoice with its lines.
func InvoiceGet(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice id"))
			return
		}

		record, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// InvoiceList returns recent invoices, newest first.
func InvoiceList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		limit := parseLimit(r.URL.Query().Get("limit"), 50)
		records, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

// TaxCodeLookup resolves a company's registration from the public registry
// so the cashier can prefill invoice details.
func TaxCodeLookup(client *taxreg.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tax registry unavailable"))
			return
		}

		company, err := client.Lookup(r.Context(), chi.URLParam(r, "taxCode"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, taxCodeResponse{
			TaxCode: company.TaxCode,
			Name:    company.Name,
			Address: company.Address,
			Active:  company.Active(),
			Status:  company.StatusCode,
		})
	}
}

type taxCodeResponse struct {
	TaxCode string `json:"tax_code"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
	Status  string `json:"status"`
}
