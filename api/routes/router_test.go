package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	cartsvc "github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/internal/catalog"
	"github.com/tqvinh-dev/salepoint-backend/internal/checkout"
	"github.com/tqvinh-dev/salepoint-backend/internal/invoices"
	"github.com/tqvinh-dev/salepoint-backend/internal/orders"
	pkgAuth "github.com/tqvinh-dev/salepoint-backend/pkg/auth"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/einvoice"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/qrpay"
)

type stubCartService struct{}

func (stubCartService) Get(ctx context.Context, terminalID string) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{TerminalID: terminalID, TakenAt: time.Now().UTC()}, nil
}

func (stubCartService) AddLine(ctx context.Context, terminalID string, productID uuid.UUID, quantity int) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{TerminalID: terminalID}, nil
}

func (stubCartService) UpdateQuantity(ctx context.Context, terminalID string, lineID uuid.UUID, quantity int) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{TerminalID: terminalID}, nil
}

func (stubCartService) RemoveLine(ctx context.Context, terminalID string, lineID uuid.UUID) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{TerminalID: terminalID}, nil
}

func (stubCartService) Clear(ctx context.Context, terminalID string) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{TerminalID: terminalID}, nil
}

func (stubCartService) ConvertActive(ctx context.Context, terminalID string) error {
	return nil
}

type stubCatalogService struct{}

func (stubCatalogService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubCatalogService) List(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	return nil, nil
}

func (stubCatalogService) Create(ctx context.Context, input catalog.ProductInput) (*models.Product, error) {
	return &models.Product{ID: uuid.New(), SKU: input.SKU, Name: input.Name}, nil
}

func (stubCatalogService) Update(ctx context.Context, id uuid.UUID, input catalog.ProductInput) (*models.Product, error) {
	return &models.Product{ID: id, SKU: input.SKU, Name: input.Name}, nil
}

func (stubCatalogService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubOrderService struct{}

func (stubOrderService) Save(ctx context.Context, input orders.SaveInput) (*models.OrderRecord, error) {
	return &models.OrderRecord{ID: uuid.New()}, nil
}

func (stubOrderService) Get(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	return &models.OrderRecord{ID: id}, nil
}

func (stubOrderService) List(ctx context.Context, terminalID string, limit int) ([]models.OrderRecord, error) {
	return nil, nil
}

type stubInvoiceService struct{}

func (stubInvoiceService) Publish(ctx context.Context, input invoices.IssueInput) (*einvoice.PublishResult, error) {
	return &einvoice.PublishResult{InvoiceNumber: "INV-1"}, nil
}

func (stubInvoiceService) Save(ctx context.Context, input invoices.IssueInput, result *einvoice.PublishResult) (*models.InvoiceRecord, error) {
	return &models.InvoiceRecord{ID: uuid.New()}, nil
}

func (stubInvoiceService) IssueNow(ctx context.Context, input invoices.IssueInput) (*models.InvoiceRecord, error) {
	return &models.InvoiceRecord{ID: uuid.New()}, nil
}

func (stubInvoiceService) SaveDraft(ctx context.Context, input invoices.IssueInput) (*models.InvoiceRecord, error) {
	return &models.InvoiceRecord{ID: uuid.New()}, nil
}

func (stubInvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	return &models.InvoiceRecord{ID: id}, nil
}

func (stubInvoiceService) List(ctx context.Context, limit int) ([]models.InvoiceRecord, error) {
	return nil, nil
}

type stubQRClient struct{}

func (stubQRClient) RequestQR(ctx context.Context, req qrpay.QRRequest) (*qrpay.QRResponse, error) {
	return &qrpay.QRResponse{QRPayload: "payload", TransactionUUID: uuid.NewString()}, nil
}

func (stubQRClient) MerchantCode() string { return "MERCH" }

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	mgr, err := checkout.NewManager(
		stubCartService{},
		stubOrderService{},
		stubInvoiceService{},
		stubQRClient{},
		nil,
		nil,
		nil,
		nil,
		cfg.Checkout,
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	return NewRouter(Deps{
		Config:   cfg,
		Logger:   nil,
		Catalog:  stubCatalogService{},
		Cart:     stubCartService{},
		Orders:   stubOrderService{},
		Invoices: stubInvoiceService{},
		Checkout: mgr,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "salepoint-test",
			ExpirationMinutes: 30,
		},
		Checkout: config.CheckoutConfig{QRWaitTimeout: time.Minute, RoundingTolerance: 1},
	}
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := testRouter(t, testConfig())

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodGet, "/api/v1/products"},
		{http.MethodPost, "/api/v1/checkout/begin"},
		{http.MethodGet, "/api/v1/orders"},
	}
	for _, tc := range paths {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestAuthorizedCartGet(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	token, err := pkgAuth.MintTerminalToken(cfg.JWT, time.Now(), pkgAuth.TerminalTokenPayload{
		TerminalID: "term-9",
		JTI:        "jti-router",
	})
	if err != nil {
		t.Fatalf("MintTerminalToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			TerminalID string `json:"terminal_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.TerminalID != "term-9" {
		t.Fatalf("terminal = %q", envelope.Data.TerminalID)
	}
}

func TestWebhookMountedWithoutAuth(t *testing.T) {
	router := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/qr-payment",
		strings.NewReader(`{"transaction_uuid":"txn-unknown"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, unknown transactions must still ack", rec.Code)
	}
}
