package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tqvinh-dev/salepoint-backend/api/routes"
	cartsvc "github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/internal/catalog"
	"github.com/tqvinh-dev/salepoint-backend/internal/checkout"
	"github.com/tqvinh-dev/salepoint-backend/internal/display"
	"github.com/tqvinh-dev/salepoint-backend/internal/invoices"
	"github.com/tqvinh-dev/salepoint-backend/internal/orders"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/einvoice"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/qrpay"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/taxreg"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	"github.com/tqvinh-dev/salepoint-backend/pkg/metrics"
	"github.com/tqvinh-dev/salepoint-backend/pkg/migrate"
	"github.com/tqvinh-dev/salepoint-backend/pkg/pubsub"
	"github.com/tqvinh-dev/salepoint-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var sink display.Publisher = display.NoopPublisher{}
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(context.Background(), "pubsub unavailable, customer display events disabled")
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err := display.NewPubSubPublisher(pubsubClient.DisplayPublisher(), logg)
		if err != nil {
			logg.Warn(context.Background(), "display topic not configured, customer display events disabled")
		} else {
			sink = publisher
		}
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	qrClient, err := qrpay.NewClient(cfg.QRGateway, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create qr gateway client", err)
		os.Exit(1)
	}
	taxClient, err := taxreg.NewClient(cfg.TaxRegistry, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create tax registry client", err)
		os.Exit(1)
	}
	einvoiceClient, err := einvoice.NewClient(cfg.EInvoice, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create e-invoice client", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	cartService, err := cartsvc.NewService(cartsvc.NewRepository(dbClient.DB()), catalog.NewRepository(dbClient.DB()), sink, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	orderService, err := orders.NewService(orders.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	invoiceService, err := invoices.NewService(invoices.NewRepository(dbClient.DB()), einvoiceClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}
	checkoutManager, err := checkout.NewManager(
		cartService,
		orderService,
		invoiceService,
		qrClient,
		sink,
		redisClient,
		checkoutMetrics,
		logg,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout manager", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Catalog:     catalogService,
			Cart:        cartService,
			Orders:      orderService,
			Invoices:    invoiceService,
			Checkout:    checkoutManager,
			TaxRegistry: taxClient,
			Gatherer:    registry,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}()

	<-shutdown
	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
}
