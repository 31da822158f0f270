package qrpay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	"github.com/tqvinh-dev/salepoint-backend/pkg/metrics"
)

const createPath = "/api/v1/qr/create"

var (
	errBaseURLRequired  = errors.New("qr gateway base url is required")
	errMerchantRequired = errors.New("qr gateway merchant code is required")
)

// Client calls the QR payment gateway over HTTP. A request failure never
// blocks the checkout: callers fall back to PlaceholderPayload.
type Client struct {
	baseURL      string
	merchantCode string
	apiKey       string
	httpClient   *http.Client
	logger       *logger.Logger
	metrics      *metrics.CheckoutMetrics
}

// NewClient initializes the gateway wrapper and validates its configuration.
func NewClient(cfg config.QRGatewayConfig, logg *logger.Logger, mets *metrics.CheckoutMetrics) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.MerchantCode) == "" {
		return nil, errMerchantRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:      baseURL,
		merchantCode: cfg.MerchantCode,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logg,
		metrics:      mets,
	}, nil
}

// QRRequest carries the data needed to create a payment QR.
type QRRequest struct {
	Amount      float64
	OrderNumber string
	TerminalID  string
}

// QRResponse is the gateway's answer plus the correlation token for the
// asynchronous success notification.
type QRResponse struct {
	QRPayload       string
	TransactionUUID string
}

type createRequest struct {
	MerchantCode    string  `json:"merchant_code"`
	Amount          float64 `json:"amount"`
	OrderRef        string  `json:"order_ref"`
	TerminalID      string  `json:"terminal_id"`
	TransactionUUID string  `json:"transaction_uuid"`
}

type createResponse struct {
	QRData  string `json:"qrData"`
	Message string `json:"message"`
}

// RequestQR asks the gateway for a QR payload. The TransactionUUID is minted
// here and echoed by the gateway's out-of-band success notification.
func (c *Client) RequestQR(ctx context.Context, req QRRequest) (*QRResponse, error) {
	transactionUUID := uuid.NewString()

	payload := createRequest{
		MerchantCode:    c.merchantCode,
		Amount:          req.Amount,
		OrderRef:        req.OrderNumber,
		TerminalID:      req.TerminalID,
		TransactionUUID: transactionUUID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode qr request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build qr request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log(ctx, "request", "create_qr", map[string]any{
		"order_ref":        req.OrderNumber,
		"amount":           req.Amount,
		"transaction_uuid": transactionUUID,
	})

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.ObserveGateway("qrpay", "create_qr", time.Since(started))
	if err != nil {
		c.log(ctx, "error", "create_qr", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qr gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("qr gateway returned status %d", resp.StatusCode)
		c.log(ctx, "error", "create_qr", map[string]any{"error": err.Error(), "status": resp.StatusCode})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qr gateway request failed")
	}

	var decoded createResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.log(ctx, "error", "create_qr", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "decode qr gateway response")
	}

	c.log(ctx, "response", "create_qr", map[string]any{"transaction_uuid": transactionUUID})
	return &QRResponse{
		QRPayload:       DecodePayload(decoded.QRData),
		TransactionUUID: transactionUUID,
	}, nil
}

// DecodePayload attempts a base64 decode and falls back to the raw payload.
// A decode failure is never fatal; some gateway versions send plain text.
func DecodePayload(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return ""
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return string(decoded)
	}
	return trimmed
}

// PlaceholderPayload builds a locally-generated QR payload used when the
// gateway is unavailable. Same visual contract, degraded content.
func PlaceholderPayload(merchantCode, orderNumber string, amount float64) string {
	return fmt.Sprintf("SALEPOINT|OFFLINE|%s|%s|%.2f", merchantCode, orderNumber, amount)
}

// MerchantCode returns the configured merchant code.
func (c *Client) MerchantCode() string {
	if c == nil {
		return ""
	}
	return c.merchantCode
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"gateway":   "qrpay",
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("qrpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("qrpay %s", phase))
	}
}
