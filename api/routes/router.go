package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrolinkhq/agrolink-backend/api/controllers"
	"github.com/agrolinkhq/agrolink-backend/api/middleware"
	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/inventory"
	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/orders"
	"github.com/agrolinkhq/agrolink-backend/internal/payments"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Cart          cart.Service
	Payments      payments.Service
	Orders        orders.Service
	Inventory     inventory.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	var idemStore redis.IdempotencyStore
	var redisP redis.Pinger
	var limiter middleware.RateLimiter
	if redisClient != nil {
		idemStore = redisClient
		redisP = redisClient
		limiter = redisClient
	}

	verifyPolicy := middleware.NewRateLimitPolicy("payment_verify", cfg.Razorpay.VerifyRateWindow, cfg.Razorpay.VerifyRateLimit)

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.Healthz(cfg))
	r.Get("/readyz", controllers.Readyz(logg, dbP, redisP))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireBuyer(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(svcs.Cart, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(svcs.Cart, logg))
				r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			})

			r.Post("/checkout/cod", controllers.CheckoutCOD(svcs.Payments, logg))
			r.Route("/payments/razorpay", func(r chi.Router) {
				r.Post("/order", controllers.RazorpayOrderCreate(svcs.Payments, logg))
				r.With(middleware.RateLimit(verifyPolicy, limiter, logg)).
					Post("/verify", controllers.RazorpayVerify(svcs.Payments, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))
				r.Post("/{orderId}/return", controllers.RequestReturn(svcs.Orders, logg))
			})
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.VendorOrders(svcs.Orders, logg))
				r.Post("/{orderId}/status", controllers.VendorOrderStatus(svcs.Orders, logg))
				r.Post("/{orderId}/return/decision", controllers.VendorReturnDecision(svcs.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", controllers.VendorPayments(svcs.Payments, logg))
				r.Get("/summary", controllers.VendorPaymentsSummary(svcs.Payments, logg))
				r.Post("/{paymentId}/refund", controllers.VendorRefund(svcs.Payments, logg))
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", controllers.VendorInventory(svcs.Inventory, logg))
				r.Get("/alerts", controllers.VendorInventoryAlerts(svcs.Inventory, logg))
				r.Get("/movements", controllers.VendorInventoryMovements(svcs.Inventory, logg))
				r.Patch("/{productId}/stock", controllers.VendorSetStock(svcs.Inventory, logg))
				r.Patch("/bulk", controllers.VendorBulkSetStock(svcs.Inventory, logg))
			})
		})
	})

	return r
}
