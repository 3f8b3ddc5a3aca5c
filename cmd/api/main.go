package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrolinkhq/agrolink-backend/api/routes"
	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/internal/inventory"
	"github.com/agrolinkhq/agrolink-backend/internal/kyc"
	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/orders"
	"github.com/agrolinkhq/agrolink-backend/internal/payments"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/metrics"
	"github.com/agrolinkhq/agrolink-backend/pkg/migrate"
	"github.com/agrolinkhq/agrolink-backend/pkg/razorpay"
	"github.com/agrolinkhq/agrolink-backend/pkg/redis"
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

	gateway, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap razorpay", err)
		os.Exit(1)
	}

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	gdb := dbClient.DB()
	ledger := stock.NewLedger()

	verifier, err := kyc.NewVerifier(gdb)
	if err != nil {
		logg.Error(context.Background(), "failed to create kyc verifier", err)
		os.Exit(1)
	}
	notifyRepo := notifications.NewRepository(gdb)
	notifier, err := notifications.NewNotifier(notifyRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	notificationsSvc, err := notifications.NewService(notifyRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(gdb), dbClient, verifier)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	checkoutSvc, err := checkout.NewService(checkout.NewRepository(gdb), dbClient, cartSvc, ledger, notifier, engineMetrics, logg, cfg.Checkout.PlatformFeeBps)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(payments.NewRepository(gdb), dbClient, checkoutSvc, cartSvc, gateway, notifier, engineMetrics, logg, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(gdb), dbClient, ledger, notifier, logg, cfg.Checkout.ReturnWindow())
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gdb), dbClient, ledger, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
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
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Cart:          cartSvc,
			Payments:      paymentsSvc,
			Orders:        ordersSvc,
			Inventory:     inventorySvc,
			Notifications: notificationsSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
