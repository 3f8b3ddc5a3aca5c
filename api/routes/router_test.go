package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/internal/inventory"
	"github.com/agrolinkhq/agrolink-backend/internal/kyc"
	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/orders"
	"github.com/agrolinkhq/agrolink-backend/internal/payments"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	pkgauth "github.com/agrolinkhq/agrolink-backend/pkg/auth"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/razorpay"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(func(tx *gorm.DB) error { return fn(tx) })
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "agrolink-test",
			ExpirationMinutes: 15,
		},
		Checkout: config.CheckoutConfig{
			PlatformFeeBps:        500,
			DefaultLowStockLevel:  10,
			ReturnWindowDays:      7,
			MinRefundReasonLength: 10,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.VendorProfile{}, &models.Product{},
		&models.Cart{}, &models.CartLine{},
		&models.Order{}, &models.OrderItem{}, &models.OrderEvent{},
		&models.Payment{}, &models.Notification{}, &models.StockAdjustment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	runner := testTxRunner{db: db}

	verifier, err := kyc.NewVerifier(db)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	carts, err := cart.NewService(cart.NewRepository(db), runner, verifier)
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	notify, err := notifications.NewNotifier(notifications.NewRepository(db))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	notifySvc, err := notifications.NewService(notifications.NewRepository(db))
	if err != nil {
		t.Fatalf("new notifications service: %v", err)
	}
	ledger := stock.NewLedger()
	placer, err := checkout.NewService(checkout.NewRepository(db), runner, carts, ledger, notify, nil, logg, cfg.Checkout.PlatformFeeBps)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	gateway, err := razorpay.NewClient(context.Background(), config.RazorpayConfig{
		KeyID:     "rzp_test_routerkey",
		KeySecret: "router-secret",
		Env:       "test",
	}, logg)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	paySvc, err := payments.NewService(payments.NewRepository(db), runner, placer, carts, gateway, notify, nil, logg, cfg.Checkout)
	if err != nil {
		t.Fatalf("new payments service: %v", err)
	}
	orderSvc, err := orders.NewService(orders.NewRepository(db), runner, ledger, notify, logg, cfg.Checkout.ReturnWindow())
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	invSvc, err := inventory.NewService(inventory.NewRepository(db), runner, ledger, notify, logg)
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	return NewRouter(cfg, logg, stubPinger{}, nil, Services{
		Cart:          carts,
		Payments:      paySvc,
		Orders:        orderSvc,
		Inventory:     invSvc,
		Notifications: notifySvc,
	})
}

func mintToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, rec.Code)
		}
	}
}

func TestAPIRejectsMissingToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBuyerCannotReachVendorRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/payments/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleFarmer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestVendorCannotReachBuyerRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleVendor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestBuyerFetchesEmptyCart(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.UserRoleFarmer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data cart.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(envelope.Data.Items))
	}
}
