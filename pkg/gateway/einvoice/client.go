package einvoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	"github.com/tqvinh-dev/salepoint-backend/pkg/metrics"
)

const publishPath = "/api/v1/invoices/publish"

var errBaseURLRequired = errors.New("e-invoice base url is required")

// Client publishes invoices to the national e-invoice provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.CheckoutMetrics
}

func NewClient(cfg config.EInvoiceConfig, logg *logger.Logger, mets *metrics.CheckoutMetrics) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
		metrics:    mets,
	}, nil
}

// Connection carries the per-tenant provider credentials.
type Connection struct {
	IssuerCode   string
	AccountCode  string
	Username     string
	Password     string
	TemplateCode string
	SerialSymbol string
}

func (c Connection) complete() bool {
	return c.IssuerCode != "" && c.AccountCode != "" && c.Username != "" && c.Password != ""
}

// Line is one invoice line as the provider expects it. LineTax carries the
// rounded per-line amount required on the regulator-facing document.
type Line struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     int     `json:"tax_rate"`
	LineTax     float64 `json:"line_tax"`
	LineTotal   float64 `json:"line_total"`
}

// PublishRequest is the full payload for publishing one invoice.
type PublishRequest struct {
	Connection    Connection
	TradeNumber   string
	BuyerName     string
	BuyerTaxCode  string
	BuyerAddress  string
	BuyerEmail    string
	PaymentMethod string
	Subtotal      float64
	Tax           float64
	Total         float64
	Lines         []Line
}

// PublishResult is the provider's assigned invoice identity.
type PublishResult struct {
	InvoiceNumber string
	InvoiceDate   string
}

type publishPayload struct {
	AccountCode   string  `json:"account_code"`
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	TemplateCode  string  `json:"template_code"`
	SerialSymbol  string  `json:"serial_symbol"`
	TradeNumber   string  `json:"trade_number"`
	BuyerName     string  `json:"buyer_name"`
	BuyerTaxCode  string  `json:"buyer_tax_code"`
	BuyerAddress  string  `json:"buyer_address"`
	BuyerEmail    string  `json:"buyer_email"`
	PaymentMethod string  `json:"payment_method"`
	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
	Lines         []Line  `json:"lines"`
}

type publishResponse struct {
	Status        string `json:"status"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	Message       string `json:"message"`
}

// Publish sends the invoice to the provider. Errors are classified so the
// caller can distinguish a fixable payload from a broken tenant connection
// or a provider outage.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if !req.Connection.complete() {
		return nil, pkgerrors.New(pkgerrors.CodeConnectionInfo, "e-invoice connection info is incomplete")
	}
	if req.TradeNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trade number is required")
	}
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice has no lines")
	}

	payload := publishPayload{
		AccountCode:   req.Connection.AccountCode,
		Username:      req.Connection.Username,
		Password:      req.Connection.Password,
		TemplateCode:  req.Connection.TemplateCode,
		SerialSymbol:  req.Connection.SerialSymbol,
		TradeNumber:   req.TradeNumber,
		BuyerName:     req.BuyerName,
		BuyerTaxCode:  req.BuyerTaxCode,
		BuyerAddress:  req.BuyerAddress,
		BuyerEmail:    req.BuyerEmail,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      req.Subtotal,
		Tax:           req.Tax,
		Total:         req.Total,
		Lines:         req.Lines,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode invoice payload")
	}

	endpoint := fmt.Sprintf("%s%s", c.baseURL, publishPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build publish request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", "publish_invoice", map[string]any{
		"trade_number": req.TradeNumber,
		"issuer_code":  req.Connection.IssuerCode,
		"line_count":   len(req.Lines),
	})

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.ObserveGateway("einvoice", "publish_invoice", time.Since(started))
	if err != nil {
		c.log(ctx, "error", "publish_invoice", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "e-invoice provider unreachable")
	}
	defer resp.Body.Close()

	var decoded publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode < 300 {
		c.log(ctx, "error", "publish_invoice", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "decode provider response")
	}

	// Any remote rejection is a gateway refusal, however the provider spells
	// it. Validation errors are reserved for payload problems caught before
	// the network call.
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pkgerrors.New(pkgerrors.CodeConnectionInfo, providerMessage(decoded, "provider rejected credentials"))
	case resp.StatusCode >= 500:
		err := fmt.Errorf("e-invoice provider returned status %d", resp.StatusCode)
		c.log(ctx, "error", "publish_invoice", map[string]any{"error": err.Error(), "status": resp.StatusCode})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "e-invoice provider unavailable")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, providerMessage(decoded, "provider refused invoice"))
	}

	if !strings.EqualFold(decoded.Status, "ok") {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, providerMessage(decoded, "provider refused invoice"))
	}
	if decoded.InvoiceNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "provider response missing invoice number")
	}

	c.log(ctx, "response", "publish_invoice", map[string]any{
		"trade_number":   req.TradeNumber,
		"invoice_number": decoded.InvoiceNumber,
	})
	return &PublishResult{
		InvoiceNumber: decoded.InvoiceNumber,
		InvoiceDate:   decoded.InvoiceDate,
	}, nil
}

func providerMessage(resp publishResponse, fallback string) string {
	if strings.TrimSpace(resp.Message) != "" {
		return resp.Message
	}
	return fallback
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"gateway":   "einvoice",
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("einvoice %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("einvoice %s", phase))
	}
}
