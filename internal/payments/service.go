package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/pkg/config"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/metrics"
	"github.com/agrolinkhq/agrolink-backend/pkg/razorpay"
)

const gatewayCurrency = "INR"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderPlacer interface {
	Checkout(ctx context.Context, actor checkout.Actor, input checkout.Input) (*checkout.Outcome, error)
	CheckoutInTx(ctx context.Context, tx *gorm.DB, actor checkout.Actor, input checkout.Input) (*checkout.Outcome, error)
	EmitPostCommit(ctx context.Context, outcome *checkout.Outcome)
}

type cartSnapshotter interface {
	Snapshot(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*cart.Snapshot, error)
}

type gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	Refund(ctx context.Context, paymentID string, amountPaise int64) (string, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type notifier interface {
	RefundIssued(ctx context.Context, buyerID uuid.UUID, orderNumber string, amount decimal.Decimal) error
}

// GatewayOrder is returned to the client so it can open the payment widget.
type GatewayOrder struct {
	GatewayOrderID string          `json:"gateway_order_id"`
	AmountPaise    int64           `json:"amount_paise"`
	Currency       string          `json:"currency"`
	CartTotal      decimal.Decimal `json:"cart_total"`
}

// VerifyInput carries the gateway callback plus the order details.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Order            checkout.Input
}

// RefundInput is a vendor-initiated refund against one payment row.
type RefundInput struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
}

// Service reconciles gateway payments with orders and processes refunds.
type Service interface {
	CreateGatewayOrder(ctx context.Context, actor checkout.Actor) (*GatewayOrder, error)
	VerifyAndPlace(ctx context.Context, actor checkout.Actor, input VerifyInput) (*models.Order, error)
	PlaceCOD(ctx context.Context, actor checkout.Actor, input checkout.Input) (*models.Order, error)
	Refund(ctx context.Context, vendorID uuid.UUID, input RefundInput) (*models.Payment, error)
	ListVendorPayments(ctx context.Context, vendorID uuid.UUID) ([]models.Payment, error)
	VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	placer  orderPlacer
	carts   cartSnapshotter
	gw      gateway
	notify  notifier
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
	cfg     config.CheckoutConfig
}

// NewService builds the payments service.
func NewService(repo Repository, tx txRunner, placer orderPlacer, carts cartSnapshotter, gw gateway, notify notifier, m *metrics.EngineMetrics, logg *logger.Logger, cfg config.CheckoutConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if placer == nil {
		return nil, fmt.Errorf("order placer required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart snapshotter required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		placer:  placer,
		carts:   carts,
		gw:      gw,
		notify:  notify,
		metrics: m,
		logg:    logg,
		cfg:     cfg,
	}, nil
}

// CreateGatewayOrder registers the buyer's current cart total with the
// gateway ahead of an online payment.
func (s *service) CreateGatewayOrder(ctx context.Context, actor checkout.Actor) (*GatewayOrder, error) {
	if _, ok := actor.Role.BuyerRole(); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can start a payment")
	}

	var snapshot *cart.Snapshot
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		snapshot, terr = s.carts.Snapshot(ctx, tx, actor.UserID)
		return terr
	}); err != nil {
		return nil, err
	}

	amountPaise := toPaise(snapshot.Total)
	receipt := "agl_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	order, err := s.gw.CreateOrder(ctx, amountPaise, gatewayCurrency, receipt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	return &GatewayOrder{
		GatewayOrderID: order.ID,
		AmountPaise:    amountPaise,
		Currency:       gatewayCurrency,
		CartTotal:      snapshot.Total,
	}, nil
}

// VerifyAndPlace validates the gateway callback and places the order inside
// one transaction. A signature or amount mismatch rejects the attempt
// outright; stock and order rows never survive a failed verification.
func (s *service) VerifyAndPlace(ctx context.Context, actor checkout.Actor, input VerifyInput) (*models.Order, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature are required")
	}

	if !s.gw.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.metrics.IncPaymentVerification("signature_mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "payment signature mismatch")
	}

	gatewayPayment, err := s.gw.FetchPayment(ctx, input.GatewayPaymentID)
	if err != nil {
		s.metrics.IncPaymentVerification("gateway_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch gateway payment")
	}
	if gatewayPayment.Status != razorpay.PaymentStatusCaptured {
		s.metrics.IncPaymentVerification("not_captured")
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity,
			fmt.Sprintf("payment is %s, not captured", gatewayPayment.Status))
	}
	if gatewayPayment.OrderID != input.GatewayOrderID {
		s.metrics.IncPaymentVerification("order_mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "payment belongs to a different gateway order")
	}

	order := input.Order
	order.PaymentMethod = enums.PaymentMethodRazorpay

	var outcome *checkout.Outcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, ferr := repo.FindOrderByGatewayPaymentID(ctx, input.GatewayPaymentID); ferr == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "gateway payment already applied to an order")
		} else if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "check gateway payment binding")
		}

		var terr error
		outcome, terr = s.placer.CheckoutInTx(ctx, tx, actor, order)
		if terr != nil {
			return terr
		}

		expectedPaise := toPaise(outcome.Order.TotalAmount)
		if expectedPaise != gatewayPayment.Amount {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "captured amount does not match order total").
				WithDetails(map[string]any{
					"expected_paise": expectedPaise,
					"captured_paise": gatewayPayment.Amount,
				})
		}

		updates := map[string]any{
			"payment_status":      enums.PaymentStatusPaid,
			"razorpay_order_id":   input.GatewayOrderID,
			"razorpay_payment_id": input.GatewayPaymentID,
		}
		if uerr := repo.UpdateOrder(ctx, outcome.Order.ID, updates); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "mark order paid")
		}
		if uerr := repo.UpdateOrderPayments(ctx, outcome.Order.ID, updates); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "mark vendor payments paid")
		}

		detail := fmt.Sprintf("razorpay payment %s captured for %s", input.GatewayPaymentID, outcome.Order.OrderNumber)
		event := models.OrderEvent{
			ID:        uuid.New(),
			OrderID:   outcome.Order.ID,
			ActorType: enums.ActorTypeSystem,
			Event:     "PAYMENT_VERIFIED",
			Detail:    &detail,
		}
		return repo.CreateOrderEvent(ctx, &event)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeIntegrity {
			s.metrics.IncPaymentVerification("amount_mismatch")
		} else {
			s.metrics.IncPaymentVerification("failure")
		}
		return nil, err
	}

	s.metrics.IncPaymentVerification("success")
	s.placer.EmitPostCommit(ctx, outcome)

	placed := outcome.Order
	placed.PaymentStatus = enums.PaymentStatusPaid
	gatewayOrderID := input.GatewayOrderID
	gatewayPaymentID := input.GatewayPaymentID
	placed.RazorpayOrderID = &gatewayOrderID
	placed.RazorpayPaymentID = &gatewayPaymentID
	return &placed, nil
}

// PlaceCOD places a cash-on-delivery order. Payment stays PENDING until the
// vendor marks delivery.
func (s *service) PlaceCOD(ctx context.Context, actor checkout.Actor, input checkout.Input) (*models.Order, error) {
	input.PaymentMethod = enums.PaymentMethodCOD
	outcome, err := s.placer.Checkout(ctx, actor, input)
	if err != nil {
		return nil, err
	}
	return &outcome.Order, nil
}

// Refund processes a vendor refund against one payment row. Gateway-backed
// payments go through Razorpay; COD refunds complete immediately. A gateway
// failure leaves the refund FAILED and is never retried automatically.
func (s *service) Refund(ctx context.Context, vendorID uuid.UUID, input RefundInput) (*models.Payment, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if len(reason) < s.cfg.MinRefundReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("refund reason must be at least %d characters", s.cfg.MinRefundReasonLength))
	}

	var payment *models.Payment
	var buyerID uuid.UUID
	var orderNumber string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, lerr := repo.FindVendorPayment(ctx, input.PaymentID, vendorID)
		if lerr != nil {
			if errors.Is(lerr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, lerr, "load payment")
		}

		if loaded.PaymentStatus != enums.PaymentStatusPaid &&
			loaded.PaymentStatus != enums.PaymentStatusPartiallyRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment is %s, refunds require a paid payment", loaded.PaymentStatus))
		}
		if loaded.RefundStatus == enums.RefundStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeConflict, "a refund is already in progress for this payment")
		}

		refundable := loaded.VendorAmount.Sub(loaded.RefundAmount)
		if input.Amount.GreaterThan(refundable) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds refundable balance").
				WithDetails(map[string]any{
					"refundable": refundable.StringFixed(2),
					"requested":  input.Amount.StringFixed(2),
				})
		}

		if loaded.PaymentMethod == enums.PaymentMethodRazorpay && loaded.RazorpayPaymentID == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no gateway payment to refund against")
		}

		if uerr := repo.UpdatePayment(ctx, loaded.ID, map[string]any{
			"refund_status": enums.RefundStatusProcessing,
			"refund_reason": reason,
		}); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "mark refund processing")
		}

		order, oerr := repo.FindOrder(ctx, loaded.OrderID)
		if oerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, oerr, "load order")
		}
		buyerID = order.BuyerID
		orderNumber = order.OrderNumber
		payment = loaded
		return nil
	})
	if err != nil {
		s.metrics.IncRefund("rejected")
		return nil, err
	}

	var gatewayRefundID *string
	if payment.PaymentMethod == enums.PaymentMethodRazorpay {
		refundID, gerr := s.gw.Refund(ctx, *payment.RazorpayPaymentID, toPaise(input.Amount))
		if gerr != nil {
			s.failRefund(ctx, payment, gerr)
			s.metrics.IncRefund("gateway_error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gerr, "gateway refund")
		}
		gatewayRefundID = &refundID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		newRefunded := payment.RefundAmount.Add(input.Amount)
		status := enums.PaymentStatusPartiallyRefunded
		if newRefunded.Equal(payment.VendorAmount) {
			status = enums.PaymentStatusRefunded
		}
		updates := map[string]any{
			"refund_amount":  newRefunded,
			"refund_status":  enums.RefundStatusCompleted,
			"payment_status": status,
		}
		if gatewayRefundID != nil {
			updates["razorpay_refund_id"] = *gatewayRefundID
		}
		if uerr := repo.UpdatePayment(ctx, payment.ID, updates); uerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, uerr, "record refund")
		}

		if uerr := s.syncOrderPaymentStatus(ctx, repo, payment.OrderID); uerr != nil {
			return uerr
		}

		detail := fmt.Sprintf("refund of ₹%s issued: %s", input.Amount.StringFixed(2), reason)
		actorID := vendorID
		event := models.OrderEvent{
			ID:        uuid.New(),
			OrderID:   payment.OrderID,
			ActorType: enums.ActorTypeVendor,
			ActorID:   &actorID,
			Event:     "REFUND_ISSUED",
			Detail:    &detail,
		}
		return repo.CreateOrderEvent(ctx, &event)
	})
	if err != nil {
		s.metrics.IncRefund("failure")
		return nil, err
	}

	s.metrics.IncRefund("success")
	if nerr := s.notify.RefundIssued(ctx, buyerID, orderNumber, input.Amount); nerr != nil {
		s.logg.Warn(ctx, fmt.Sprintf("refund notification failed for order %s: %v", orderNumber, nerr))
	}

	updated, err := s.repo.FindVendorPayment(ctx, payment.ID, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return updated, nil
}

func (s *service) ListVendorPayments(ctx context.Context, vendorID uuid.UUID) ([]models.Payment, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	payments, err := s.repo.ListVendorPayments(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor payments")
	}
	return payments, nil
}

func (s *service) VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	summary, err := s.repo.VendorSummary(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize vendor payments")
	}
	return summary, nil
}

// failRefund marks the refund FAILED after a gateway error. Best effort: the
// original gateway error is what the caller sees.
func (s *service) failRefund(ctx context.Context, payment *models.Payment, cause error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if uerr := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"refund_status": enums.RefundStatusFailed,
		}); uerr != nil {
			return uerr
		}
		detail := fmt.Sprintf("gateway refund failed: %v", cause)
		event := models.OrderEvent{
			ID:        uuid.New(),
			OrderID:   payment.OrderID,
			ActorType: enums.ActorTypeSystem,
			Event:     "REFUND_FAILED",
			Detail:    &detail,
		}
		return repo.CreateOrderEvent(ctx, &event)
	})
	if err != nil {
		s.logg.Error(ctx, "failed to record refund failure", err)
	}
}

func (s *service) syncOrderPaymentStatus(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	rows, err := repo.ListOrderPayments(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
	}

	allRefunded := len(rows) > 0
	for _, row := range rows {
		if row.PaymentStatus != enums.PaymentStatusRefunded {
			allRefunded = false
			break
		}
	}

	status := enums.PaymentStatusPartiallyRefunded
	if allRefunded {
		status = enums.PaymentStatusRefunded
	}
	if err := repo.UpdateOrder(ctx, orderID, map[string]any{"payment_status": status}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync order payment status")
	}
	return nil
}

func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
