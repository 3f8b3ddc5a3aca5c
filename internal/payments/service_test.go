package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/internal/kyc"
	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/razorpay"
	"github.com/agrolinkhq/agrolink-backend/pkg/types"
)

const testSecret = "test-gateway-secret"

type fakeGateway struct {
	createOrderFn  func(ctx context.Context, amountPaise int64, currency, receipt string) (*razorpay.Order, error)
	fetchPaymentFn func(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	refundFn       func(ctx context.Context, paymentID string, amountPaise int64) (string, error)
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*razorpay.Order, error) {
	if f.createOrderFn != nil {
		return f.createOrderFn(ctx, amountPaise, currency, receipt)
	}
	return &razorpay.Order{ID: "order_test", Amount: amountPaise, Currency: currency, Receipt: receipt}, nil
}

func (f *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	if f.fetchPaymentFn != nil {
		return f.fetchPaymentFn(ctx, paymentID)
	}
	return nil, errors.New("fetch not configured")
}

func (f *fakeGateway) Refund(ctx context.Context, paymentID string, amountPaise int64) (string, error) {
	if f.refundFn != nil {
		return f.refundFn(ctx, paymentID, amountPaise)
	}
	return "rfnd_test", nil
}

func (f *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return razorpay.VerifySignature(orderID, paymentID, signature, testSecret)
}

func signPayment(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type harness struct {
	db       *gorm.DB
	carts    cart.Service
	gw       *fakeGateway
	payments Service
}

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.Transaction(func(tx *gorm.DB) error { return fn(tx) })
}

func testAddress() types.DeliveryAddress {
	return types.DeliveryAddress{
		Street:   "5 Mandi Lane",
		District: "Pune",
		State:    "Maharashtra",
		Pincode:  "411001",
		Phone:    "9876501234",
	}
}

func TestVerifyAndPlaceHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "40.00", 10)
	mustAdd(t, h.carts, buyer, product.ID, 5)

	gatewayOrderID := "order_ok"
	gatewayPaymentID := "pay_ok"
	h.gw.fetchPaymentFn = func(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
		return &razorpay.Payment{
			ID:      paymentID,
			OrderID: gatewayOrderID,
			Status:  razorpay.PaymentStatusCaptured,
			Amount:  20000,
		}, nil
	}

	order, err := h.payments.VerifyAndPlace(ctx, buyerActor(buyer), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signPayment(gatewayOrderID, gatewayPaymentID),
		Order:            checkout.Input{DeliveryAddress: testAddress()},
	})
	if err != nil {
		t.Fatalf("verify and place: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", order.PaymentStatus)
	}

	var stored models.Order
	if err := h.db.First(&stored, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if stored.PaymentStatus != enums.PaymentStatusPaid ||
		stored.RazorpayPaymentID == nil || *stored.RazorpayPaymentID != gatewayPaymentID {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	var payment models.Payment
	if err := h.db.First(&payment, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected vendor payment PAID, got %s", payment.PaymentStatus)
	}

	var events int64
	if err := h.db.Model(&models.OrderEvent{}).
		Where("order_id = ? AND event = ?", order.ID, "PAYMENT_VERIFIED").
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected verification event, got %d", events)
	}

	assertStock(t, h.db, product.ID, 5)
}

func TestVerifyAndPlaceSignatureMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "40.00", 10)
	mustAdd(t, h.carts, buyer, product.ID, 1)

	_, err := h.payments.VerifyAndPlace(context.Background(), buyerActor(buyer), VerifyInput{
		GatewayOrderID:   "order_x",
		GatewayPaymentID: "pay_x",
		Signature:        "deadbeef",
		Order:            checkout.Input{DeliveryAddress: testAddress()},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}

	assertNoOrders(t, h.db)
	assertStock(t, h.db, product.ID, 10)
}

func TestVerifyAndPlaceAmountMismatchRollsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "40.00", 10)
	mustAdd(t, h.carts, buyer, product.ID, 5)

	gatewayOrderID := "order_short"
	gatewayPaymentID := "pay_short"
	h.gw.fetchPaymentFn = func(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
		// Captured 150.00 against a 200.00 cart.
		return &razorpay.Payment{
			ID:      paymentID,
			OrderID: gatewayOrderID,
			Status:  razorpay.PaymentStatusCaptured,
			Amount:  15000,
		}, nil
	}

	_, err := h.payments.VerifyAndPlace(ctx, buyerActor(buyer), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signPayment(gatewayOrderID, gatewayPaymentID),
		Order:            checkout.Input{DeliveryAddress: testAddress()},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}

	assertNoOrders(t, h.db)
	assertStock(t, h.db, product.ID, 10)

	view, err := h.carts.Get(ctx, buyer)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected cart intact after rollback, got %d items", len(view.Items))
	}
}

func TestVerifyAndPlaceRejectsUncaptured(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "40.00", 10)
	mustAdd(t, h.carts, buyer, product.ID, 1)

	gatewayOrderID := "order_auth"
	gatewayPaymentID := "pay_auth"
	h.gw.fetchPaymentFn = func(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
		return &razorpay.Payment{ID: paymentID, OrderID: gatewayOrderID, Status: "authorized", Amount: 4000}, nil
	}

	_, err := h.payments.VerifyAndPlace(context.Background(), buyerActor(buyer), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signPayment(gatewayOrderID, gatewayPaymentID),
		Order:            checkout.Input{DeliveryAddress: testAddress()},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestVerifyAndPlaceRejectsReusedGatewayPayment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "40.00", 10)
	mustAdd(t, h.carts, buyer, product.ID, 1)

	gatewayOrderID := "order_dup"
	gatewayPaymentID := "pay_dup"
	used := gatewayPaymentID
	existing := models.Order{
		ID:                uuid.New(),
		OrderNumber:       "ORD-1-1111",
		BuyerID:           uuid.New(),
		BuyerRole:         enums.BuyerRoleFarmer,
		TotalAmount:       decimal.RequireFromString("40.00"),
		PaymentMethod:     enums.PaymentMethodRazorpay,
		PaymentStatus:     enums.PaymentStatusPaid,
		OrderStatus:       enums.OrderStatusPlaced,
		ReturnStatus:      enums.ReturnStatusNone,
		RazorpayPaymentID: &used,
	}
	if err := h.db.Create(&existing).Error; err != nil {
		t.Fatalf("seed existing order: %v", err)
	}

	h.gw.fetchPaymentFn = func(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
		return &razorpay.Payment{ID: paymentID, OrderID: gatewayOrderID, Status: razorpay.PaymentStatusCaptured, Amount: 4000}, nil
	}

	_, err := h.payments.VerifyAndPlace(context.Background(), buyerActor(buyer), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signPayment(gatewayOrderID, gatewayPaymentID),
		Order:            checkout.Input{DeliveryAddress: testAddress()},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for reused payment, got %v", err)
	}
	assertStock(t, h.db, product.ID, 10)
}

func TestRefundCODPartialAndFull(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	vendor := uuid.New()
	payment := seedPaidPayment(t, h.db, vendor, enums.PaymentMethodCOD, "190.00")

	updated, err := h.payments.Refund(ctx, vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("90.00"),
		Reason:    "two crates arrived damaged",
	})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if !updated.RefundAmount.Equal(decimal.RequireFromString("90.00")) ||
		updated.RefundStatus != enums.RefundStatusCompleted ||
		updated.PaymentStatus != enums.PaymentStatusPartiallyRefunded {
		t.Fatalf("unexpected payment after partial refund: %+v", updated)
	}

	updated, err = h.payments.Refund(ctx, vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("100.00"),
		Reason:    "remaining goods returned too",
	})
	if err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if !updated.RefundAmount.Equal(decimal.RequireFromString("190.00")) ||
		updated.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("unexpected payment after full refund: %+v", updated)
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", payment.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("expected order REFUNDED, got %s", order.PaymentStatus)
	}

	var notes int64
	if err := h.db.Model(&models.Notification{}).
		Where("type = ?", enums.NotificationTypeRefundIssued).
		Count(&notes).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if notes != 2 {
		t.Fatalf("expected 2 refund notifications, got %d", notes)
	}
}

func TestRefundRejectsOverRefundableBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	vendor := uuid.New()
	payment := seedPaidPayment(t, h.db, vendor, enums.PaymentMethodCOD, "190.00")

	_, err := h.payments.Refund(context.Background(), vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("190.01"),
		Reason:    "refund everything and then some",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefundRejectsShortReasonAndUnpaid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	vendor := uuid.New()
	payment := seedPaidPayment(t, h.db, vendor, enums.PaymentMethodCOD, "190.00")

	_, err := h.payments.Refund(context.Background(), vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("10.00"),
		Reason:    "too short",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for short reason, got %v", err)
	}

	if err := h.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("payment_status", enums.PaymentStatusPending).Error; err != nil {
		t.Fatalf("flip payment status: %v", err)
	}
	_, err = h.payments.Refund(context.Background(), vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("10.00"),
		Reason:    "buyer rejected the delivery",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unpaid payment, got %v", err)
	}
}

func TestRefundGatewayFailureMarksFailed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	vendor := uuid.New()
	payment := seedPaidPayment(t, h.db, vendor, enums.PaymentMethodRazorpay, "190.00")

	h.gw.refundFn = func(ctx context.Context, paymentID string, amountPaise int64) (string, error) {
		return "", errors.New("gateway unavailable")
	}

	_, err := h.payments.Refund(context.Background(), vendor, RefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("50.00"),
		Reason:    "produce spoiled in transit",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	var reloaded models.Payment
	if err := h.db.First(&reloaded, "id = ?", payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloaded.RefundStatus != enums.RefundStatusFailed {
		t.Fatalf("expected FAILED refund status, got %s", reloaded.RefundStatus)
	}
	if !reloaded.RefundAmount.IsZero() {
		t.Fatalf("expected no refund recorded, got %s", reloaded.RefundAmount)
	}

	var events int64
	if err := h.db.Model(&models.OrderEvent{}).
		Where("order_id = ? AND event = ?", payment.OrderID, "REFUND_FAILED").
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected refund failure event, got %d", events)
	}
}

func TestCreateGatewayOrderUsesCartTotal(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	buyer := uuid.New()
	product := seedCatalog(t, h.db, "55.50", 10)
	mustAdd(t, h.carts, buyer, product.ID, 2)

	var gotPaise int64
	h.gw.createOrderFn = func(ctx context.Context, amountPaise int64, currency, receipt string) (*razorpay.Order, error) {
		gotPaise = amountPaise
		return &razorpay.Order{ID: "order_created", Amount: amountPaise, Currency: currency, Receipt: receipt}, nil
	}

	created, err := h.payments.CreateGatewayOrder(context.Background(), buyerActor(buyer))
	if err != nil {
		t.Fatalf("create gateway order: %v", err)
	}
	if gotPaise != 11100 || created.AmountPaise != 11100 {
		t.Fatalf("expected 11100 paise, got %d / %d", gotPaise, created.AmountPaise)
	}
	if created.GatewayOrderID != "order_created" {
		t.Fatalf("unexpected gateway order id %q", created.GatewayOrderID)
	}
}

func buyerActor(userID uuid.UUID) checkout.Actor {
	return checkout.Actor{UserID: userID, Role: enums.UserRoleFarmer}
}

func mustAdd(t *testing.T, carts cart.Service, buyer, productID uuid.UUID, qty int) {
	t.Helper()
	if _, err := carts.AddItem(context.Background(), buyer, productID, qty); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
}

func assertStock(t *testing.T, db *gorm.DB, productID uuid.UUID, want int) {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Stock != want {
		t.Fatalf("expected stock %d, got %d", want, product.Stock)
	}
}

func assertNoOrders(t *testing.T, db *gorm.DB) {
	t.Helper()
	var count int64
	if err := db.Model(&models.Order{}).Where("order_number != ?", "ORD-1-1111").Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, got %d", count)
	}
}

func seedCatalog(t *testing.T, db *gorm.DB, price string, stockQty int) models.Product {
	t.Helper()
	vendor := uuid.New()
	profile := models.VendorProfile{ID: uuid.New(), UserID: vendor, BusinessName: "Verified Farm", KYCStatus: enums.KYCStatusVerified}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	product := models.Product{
		ID:                uuid.New(),
		VendorID:          vendor,
		Name:              "Groundnuts",
		Category:          "produce",
		Price:             decimal.RequireFromString(price),
		Unit:              "kg",
		Stock:             stockQty,
		LowStockThreshold: 2,
		IsActive:          true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedPaidPayment(t *testing.T, db *gorm.DB, vendorID uuid.UUID, method enums.PaymentMethod, vendorAmount string) models.Payment {
	t.Helper()

	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-2-" + uuid.NewString()[:4],
		BuyerID:       uuid.New(),
		BuyerRole:     enums.BuyerRoleFarmer,
		TotalAmount:   decimal.RequireFromString("200.00"),
		PaymentMethod: method,
		PaymentStatus: enums.PaymentStatusPaid,
		OrderStatus:   enums.OrderStatusDelivered,
		ReturnStatus:  enums.ReturnStatusNone,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	payment := models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		VendorID:      vendorID,
		Amount:        decimal.RequireFromString("200.00"),
		PlatformFee:   decimal.RequireFromString("10.00"),
		VendorAmount:  decimal.RequireFromString(vendorAmount),
		PaymentMethod: method,
		PaymentStatus: enums.PaymentStatusPaid,
		RefundAmount:  decimal.Zero,
		RefundStatus:  enums.RefundStatusNone,
	}
	if method == enums.PaymentMethodRazorpay {
		gatewayPaymentID := "pay_seeded"
		payment.RazorpayPaymentID = &gatewayPaymentID
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.VendorProfile{}, &models.Product{},
		&models.Cart{}, &models.CartLine{},
		&models.Order{}, &models.OrderItem{}, &models.OrderEvent{},
		&models.Payment{}, &models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

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
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})

	placer, err := checkout.NewService(checkout.NewRepository(db), runner, carts, stock.NewLedger(), notify, nil, logg, 500)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	gw := &fakeGateway{}
	svc, err := NewService(NewRepository(db), runner, placer, carts, gw, notify, nil, logg, config.CheckoutConfig{
		PlatformFeeBps:        500,
		MinRefundReasonLength: 10,
		ReturnWindowDays:      7,
	})
	if err != nil {
		t.Fatalf("new payments service: %v", err)
	}

	return &harness{db: db, carts: carts, gw: gw, payments: svc}
}
