package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tqvinh-dev/salepoint-backend/api/controllers"
	"github.com/tqvinh-dev/salepoint-backend/api/middleware"
	cartsvc "github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/internal/catalog"
	"github.com/tqvinh-dev/salepoint-backend/internal/checkout"
	"github.com/tqvinh-dev/salepoint-backend/internal/invoices"
	"github.com/tqvinh-dev/salepoint-backend/internal/orders"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/taxreg"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	pkgredis "github.com/tqvinh-dev/salepoint-backend/pkg/redis"
)

// Deps carries everything the router mounts.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *db.Client
	Redis       pkgredis.IdempotencyStore
	Catalog     catalog.Service
	Cart        cartsvc.Service
	Orders      orders.Service
	Invoices    invoices.Service
	Checkout    *checkout.Manager
	TaxRegistry *taxreg.Client
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, logg))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Gateway callbacks authenticate by transaction correlation, not JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/qr-payment", controllers.QRPaymentWebhook(deps.Checkout, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/terminal-token", controllers.TerminalToken(cfg, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Tenant(middleware.HeaderTenantResolver{}))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Post("/", controllers.ProductCreate(deps.Catalog, logg))
			r.Get("/{productID}", controllers.ProductGet(deps.Catalog, logg))
			r.Put("/{productID}", controllers.ProductUpdate(deps.Catalog, logg))
			r.Delete("/{productID}", controllers.ProductDeactivate(deps.Catalog, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/lines", controllers.CartAddLine(deps.Cart, logg))
			r.Put("/lines/{lineID}", controllers.CartUpdateLine(deps.Cart, logg))
			r.Delete("/lines/{lineID}", controllers.CartRemoveLine(deps.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/state", controllers.CheckoutState(deps.Checkout, logg))
			r.Post("/begin", controllers.CheckoutBegin(deps.Checkout, logg))
			r.Post("/confirm-preview", controllers.CheckoutConfirmPreview(deps.Checkout, logg))
			r.Post("/cancel", controllers.CheckoutCancel(deps.Checkout, logg))
			r.Post("/select-cash", controllers.CheckoutSelectCash(deps.Checkout, logg))
			r.Post("/complete-cash", controllers.CheckoutCompleteCash(deps.Checkout, logg))
			r.Post("/select-qr", controllers.CheckoutSelectQR(deps.Checkout, logg))
			r.Post("/complete-qr", controllers.CheckoutCompleteQR(deps.Checkout, logg))
			r.Post("/cancel-qr", controllers.CheckoutCancelQR(deps.Checkout, logg))
			r.Post("/select-einvoice", controllers.CheckoutSelectEInvoice(deps.Checkout, logg))
			r.Post("/issue-now", controllers.CheckoutIssueNow(deps.Checkout, logg))
			r.Post("/issue-later", controllers.CheckoutIssueLater(deps.Checkout, logg))
			r.Post("/close-receipt", controllers.CheckoutCloseReceipt(deps.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(deps.Orders, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.InvoiceList(deps.Invoices, logg))
			r.Get("/{invoiceID}", controllers.InvoiceGet(deps.Invoices, logg))
		})

		r.Get("/tax-codes/{taxCode}", controllers.TaxCodeLookup(deps.TaxRegistry, logg))
	})

	return r
}
