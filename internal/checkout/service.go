package checkout

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/cart"
	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
	"github.com/agrolinkhq/agrolink-backend/pkg/metrics"
	"github.com/agrolinkhq/agrolink-backend/pkg/types"
)

const bpsDenominator = 10000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartSnapshotter interface {
	Snapshot(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*cart.Snapshot, error)
}

type stockLedger interface {
	TryDeduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*stock.Movement, error)
}

type notifier interface {
	StockAlert(ctx context.Context, alert notifications.StockAlert) error
	OrderPlaced(ctx context.Context, vendorID uuid.UUID, order models.Order, itemCount int) error
}

// Actor is the authenticated user driving the checkout.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Input is everything a checkout needs beyond the cart itself.
type Input struct {
	PaymentMethod   enums.PaymentMethod
	DeliveryAddress types.DeliveryAddress
	Notes           string
}

// Outcome carries the committed order plus the state the post-commit side
// effects need.
type Outcome struct {
	Order    models.Order
	Payments []models.Payment

	movements        []*stock.Movement
	vendorItemCounts map[uuid.UUID]int
}

// Service turns a validated cart into a durable order.
type Service interface {
	Checkout(ctx context.Context, actor Actor, input Input) (*Outcome, error)
	CheckoutInTx(ctx context.Context, tx *gorm.DB, actor Actor, input Input) (*Outcome, error)
	EmitPostCommit(ctx context.Context, outcome *Outcome)
}

type service struct {
	repo    Repository
	tx      txRunner
	carts   cartSnapshotter
	ledger  stockLedger
	notify  notifier
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
	feeBps  int
}

// NewService builds the checkout service.
func NewService(repo Repository, tx txRunner, carts cartSnapshotter, ledger stockLedger, notify notifier, m *metrics.EngineMetrics, logg *logger.Logger, platformFeeBps int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart snapshotter required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if platformFeeBps < 0 || platformFeeBps >= bpsDenominator {
		return nil, fmt.Errorf("platform fee bps out of range: %d", platformFeeBps)
	}
	return &service{
		repo:    repo,
		tx:      tx,
		carts:   carts,
		ledger:  ledger,
		notify:  notify,
		metrics: m,
		logg:    logg,
		feeBps:  platformFeeBps,
	}, nil
}

// Checkout runs the full transactional flow and emits post-commit effects.
// COD orders go through here directly; online payments run CheckoutInTx
// inside the verification transaction instead.
func (s *service) Checkout(ctx context.Context, actor Actor, input Input) (*Outcome, error) {
	started := time.Now()

	var outcome *Outcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		outcome, terr = s.CheckoutInTx(ctx, tx, actor, input)
		return terr
	})
	if err != nil {
		s.observe(input.PaymentMethod, "failure", started, err)
		return nil, err
	}

	s.observe(input.PaymentMethod, "success", started, nil)
	s.EmitPostCommit(ctx, outcome)
	return outcome, nil
}

// CheckoutInTx validates the actor and cart, deducts stock, and persists the
// order, items, audit event and per-vendor payment rows on the caller's
// transaction. Stock is deducted here and nowhere else in the order
// lifecycle; later status transitions only ever restore it.
func (s *service) CheckoutInTx(ctx context.Context, tx *gorm.DB, actor Actor, input Input) (*Outcome, error) {
	buyerRole, err := requirePurchaser(actor)
	if err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}

	snapshot, err := s.carts.Snapshot(ctx, tx, actor.UserID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		movements:        make([]*stock.Movement, 0, len(snapshot.Lines)),
		vendorItemCounts: map[uuid.UUID]int{},
	}
	for _, line := range snapshot.Lines {
		movement, err := s.ledger.TryDeduct(ctx, tx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		outcome.movements = append(outcome.movements, movement)
	}

	now := time.Now().UTC()
	order := models.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(now),
		BuyerID:         actor.UserID,
		BuyerRole:       buyerRole,
		TotalAmount:     snapshot.Total,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		OrderStatus:     enums.OrderStatusPlaced,
		ReturnStatus:    enums.ReturnStatusNone,
		DeliveryAddress: input.DeliveryAddress,
	}
	if input.Notes != "" {
		notes := input.Notes
		order.Notes = &notes
	}

	order.Items = make([]models.OrderItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			VendorID:    line.VendorID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			Subtotal:    line.Subtotal,
		})
		outcome.vendorItemCounts[line.VendorID]++
	}

	detail := fmt.Sprintf("order placed with %d items via %s", len(order.Items), input.PaymentMethod)
	actorID := actor.UserID
	order.Events = []models.OrderEvent{{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ActorType: enums.ActorTypeBuyer,
		ActorID:   &actorID,
		Event:     "ORDER_PLACED",
		Detail:    &detail,
	}}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateOrder(ctx, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	outcome.Payments = s.buildVendorPayments(order, snapshot)
	if err := repo.CreatePayments(ctx, outcome.Payments); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist vendor payments")
	}

	if err := repo.ClearCartLines(ctx, snapshot.CartID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	outcome.Order = order
	return outcome, nil
}

// EmitPostCommit sends stock alerts and vendor notifications for a committed
// checkout. Failures are logged and swallowed.
func (s *service) EmitPostCommit(ctx context.Context, outcome *Outcome) {
	if outcome == nil {
		return
	}

	for _, movement := range outcome.movements {
		alertType := movement.AlertType()
		if alertType == "" {
			continue
		}
		alert := notifications.StockAlert{
			VendorID:    movement.VendorID,
			ProductID:   movement.ProductID,
			ProductName: movement.ProductName,
			Stock:       movement.NewStock,
			Threshold:   movement.Threshold,
			Type:        alertType,
		}
		if err := s.notify.StockAlert(ctx, alert); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("stock alert failed for product %s: %v", movement.ProductID, err))
		}
	}

	for vendorID, count := range outcome.vendorItemCounts {
		if err := s.notify.OrderPlaced(ctx, vendorID, outcome.Order, count); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("order notification failed for vendor %s: %v", vendorID, err))
		}
	}
}

func (s *service) buildVendorPayments(order models.Order, snapshot *cart.Snapshot) []models.Payment {
	subtotals := map[uuid.UUID]decimal.Decimal{}
	vendorOrder := make([]uuid.UUID, 0)
	for _, line := range snapshot.Lines {
		if _, seen := subtotals[line.VendorID]; !seen {
			vendorOrder = append(vendorOrder, line.VendorID)
		}
		subtotals[line.VendorID] = subtotals[line.VendorID].Add(line.Subtotal)
	}

	feeRate := decimal.NewFromInt(int64(s.feeBps)).Div(decimal.NewFromInt(bpsDenominator))
	payments := make([]models.Payment, 0, len(vendorOrder))
	for _, vendorID := range vendorOrder {
		subtotal := subtotals[vendorID]
		fee := subtotal.Mul(feeRate).Round(2)
		payments = append(payments, models.Payment{
			ID:            uuid.New(),
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			VendorID:      vendorID,
			Amount:        subtotal,
			PlatformFee:   fee,
			VendorAmount:  subtotal.Sub(fee),
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: enums.PaymentStatusPending,
			RefundAmount:  decimal.Zero,
			RefundStatus:  enums.RefundStatusNone,
		})
	}
	return payments
}

func (s *service) observe(method enums.PaymentMethod, outcome string, started time.Time, err error) {
	s.metrics.ObserveCheckout(method.String(), outcome, time.Since(started))
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
		s.metrics.IncStockRejection()
	}
}

func requirePurchaser(actor Actor) (enums.BuyerRole, error) {
	if actor.UserID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}
	buyerRole, ok := actor.Role.BuyerRole()
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "only farmers, landowners and investors can place orders")
	}
	return buyerRole, nil
}

func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), 1000+rand.Intn(9000))
}
