package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*stock.Movement, error)
}

type notifier interface {
	StockAlert(ctx context.Context, alert notifications.StockAlert) error
	OrderCancelled(ctx context.Context, recipientID uuid.UUID, order models.Order, reason string) error
	OrderDelivered(ctx context.Context, buyerID uuid.UUID, order models.Order) error
}

// Vendor-drivable transitions. Stock was deducted when the order was
// created; CONFIRMED and PROCESSING are bookkeeping only, and CANCELLED is
// the only transition that touches the ledger.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:     {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// Service drives the order lifecycle after checkout.
type Service interface {
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	GetBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListVendorOrders(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, vendorID, orderID uuid.UUID, target enums.OrderStatus, note string) (*models.Order, error)
	CancelOrder(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error)
	RequestReturn(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error)
	ResolveReturn(ctx context.Context, vendorID, orderID uuid.UUID, approve bool, note string) (*models.Order, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	ledger       stockLedger
	notify       notifier
	logg         *logger.Logger
	returnWindow time.Duration
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, ledger stockLedger, notify notifier, logg *logger.Logger, returnWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
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
	if returnWindow <= 0 {
		return nil, fmt.Errorf("return window must be positive")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		ledger:       ledger,
		notify:       notify,
		logg:         logg,
		returnWindow: returnWindow,
	}, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	orders, err := s.repo.ListBuyerOrders(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) GetBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order ids required")
	}
	order, err := s.repo.FindBuyerOrder(ctx, orderID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListVendorOrders(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	orders, err := s.repo.ListVendorOrders(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return orders, nil
}

// UpdateStatus applies one vendor-driven transition. The vendor must own at
// least one item on the order; a transition to the current status is a no-op.
func (s *service) UpdateStatus(ctx context.Context, vendorID, orderID uuid.UUID, target enums.OrderStatus, note string) (*models.Order, error) {
	if vendorID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor and order ids required")
	}
	if !target.IsValid() || target == enums.OrderStatusPlaced {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", target))
	}

	var result *models.Order
	var movements []*stock.Movement
	var deliveredBuyer *uuid.UUID
	var cancelledBuyer *uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		vendorItems, err := repo.VendorItems(ctx, orderID, vendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor items")
		}
		if len(vendorItems) == 0 {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not include your items")
		}

		if order.OrderStatus == target {
			result = order
			return nil
		}
		if !transitionAllowed(order.OrderStatus, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.OrderStatus, target)).
				WithDetails(map[string]any{
					"current": order.OrderStatus.String(),
					"target":  target.String(),
				})
		}

		updates := map[string]any{"order_status": target}
		detail := strings.TrimSpace(note)

		switch target {
		case enums.OrderStatusDelivered:
			if order.DeliveredAt == nil {
				updates["delivered_at"] = time.Now().UTC()
			}
			// COD settles on handover.
			if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus == enums.PaymentStatusPending {
				updates["payment_status"] = enums.PaymentStatusPaid
				if perr := repo.UpdateOrderPayments(ctx, orderID, map[string]any{
					"payment_status": enums.PaymentStatusPaid,
				}); perr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, perr, "settle cod payments")
				}
			}
			buyer := order.BuyerID
			deliveredBuyer = &buyer

		case enums.OrderStatusCancelled:
			restored, summary := s.restoreItems(ctx, tx, vendorItems)
			movements = append(movements, restored...)
			if summary != "" {
				if detail != "" {
					detail += "; "
				}
				detail += summary
			}
			buyer := order.BuyerID
			cancelledBuyer = &buyer
		}

		if err := repo.UpdateOrder(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if err := s.appendEvent(ctx, repo, orderID, enums.ActorTypeVendor, &vendorID,
			"ORDER_"+target.String(), detail); err != nil {
			return err
		}

		result, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAlerts(ctx, movements)
	if deliveredBuyer != nil {
		if nerr := s.notify.OrderDelivered(ctx, *deliveredBuyer, *result); nerr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("delivery notification failed for order %s: %v", result.OrderNumber, nerr))
		}
	}
	if cancelledBuyer != nil {
		if nerr := s.notify.OrderCancelled(ctx, *cancelledBuyer, *result, note); nerr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("cancellation notification failed for order %s: %v", result.OrderNumber, nerr))
		}
	}
	return result, nil
}

// CancelOrder is the buyer-side cancellation, allowed only before the order
// enters fulfilment. All items across vendors are restored.
func (s *service) CancelOrder(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order ids required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}

	var result *models.Order
	var movements []*stock.Movement
	var vendorIDs []uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindBuyerOrder(ctx, orderID, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.OrderStatus != enums.OrderStatusPlaced && order.OrderStatus != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("orders in %s can no longer be cancelled by the buyer", order.OrderStatus))
		}

		restored, summary := s.restoreItems(ctx, tx, order.Items)
		movements = append(movements, restored...)

		seen := map[uuid.UUID]struct{}{}
		for _, item := range order.Items {
			if _, ok := seen[item.VendorID]; !ok {
				seen[item.VendorID] = struct{}{}
				vendorIDs = append(vendorIDs, item.VendorID)
			}
		}

		if err := repo.UpdateOrder(ctx, orderID, map[string]any{
			"order_status": enums.OrderStatusCancelled,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		detail := reason
		if summary != "" {
			detail += "; " + summary
		}
		if err := s.appendEvent(ctx, repo, orderID, enums.ActorTypeBuyer, &buyerID,
			"ORDER_CANCELLED", detail); err != nil {
			return err
		}

		result, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAlerts(ctx, movements)
	for _, vendorID := range vendorIDs {
		if nerr := s.notify.OrderCancelled(ctx, vendorID, *result, reason); nerr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("cancellation notification failed for vendor %s: %v", vendorID, nerr))
		}
	}
	return result, nil
}

// RequestReturn opens a return for a delivered order while the window is
// still open.
func (s *service) RequestReturn(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order ids required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindBuyerOrder(ctx, orderID, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.OrderStatus != enums.OrderStatusDelivered || order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
		}
		if order.ReturnStatus != enums.ReturnStatusNone {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("a return is already %s for this order", order.ReturnStatus))
		}
		if time.Since(*order.DeliveredAt) > s.returnWindow {
			return pkgerrors.New(pkgerrors.CodeValidation, "return window has closed").
				WithDetails(map[string]any{
					"delivered_at": order.DeliveredAt,
					"window_days":  int(s.returnWindow.Hours() / 24),
				})
		}

		if err := repo.UpdateOrder(ctx, orderID, map[string]any{
			"return_status": enums.ReturnStatusRequested,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request return")
		}
		if err := s.appendEvent(ctx, repo, orderID, enums.ActorTypeBuyer, &buyerID,
			"RETURN_REQUESTED", reason); err != nil {
			return err
		}

		result, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveReturn records the vendor's decision on an open return request.
// Money moves through the refund processor, not here.
func (s *service) ResolveReturn(ctx context.Context, vendorID, orderID uuid.UUID, approve bool, note string) (*models.Order, error) {
	if vendorID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor and order ids required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		vendorItems, err := repo.VendorItems(ctx, orderID, vendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor items")
		}
		if len(vendorItems) == 0 {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not include your items")
		}

		if order.ReturnStatus != enums.ReturnStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("no open return request, current status is %s", order.ReturnStatus))
		}

		status := enums.ReturnStatusRejected
		event := "RETURN_REJECTED"
		if approve {
			status = enums.ReturnStatusApproved
			event = "RETURN_APPROVED"
		}

		if err := repo.UpdateOrder(ctx, orderID, map[string]any{"return_status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve return")
		}
		if err := s.appendEvent(ctx, repo, orderID, enums.ActorTypeVendor, &vendorID, event, note); err != nil {
			return err
		}

		result, err = repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// restoreItems puts stock back for the given items, best effort. A product
// that can no longer be restored does not block the cancellation; failures
// are aggregated into the audit detail.
func (s *service) restoreItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) ([]*stock.Movement, string) {
	var movements []*stock.Movement
	var failed error
	restoredCount := 0

	for _, item := range items {
		movement, err := s.ledger.Restore(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			failed = multierr.Append(failed, fmt.Errorf("restore %s: %w", item.ProductName, err))
			continue
		}
		restoredCount++
		movements = append(movements, movement)
	}

	summary := fmt.Sprintf("restored stock for %d of %d items", restoredCount, len(items))
	if failed != nil {
		s.logg.Warn(ctx, fmt.Sprintf("partial stock restore: %v", failed))
		summary += fmt.Sprintf(" (%d failed)", len(items)-restoredCount)
	}
	return movements, summary
}

func (s *service) emitAlerts(ctx context.Context, movements []*stock.Movement) {
	for _, movement := range movements {
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
}

func (s *service) appendEvent(ctx context.Context, repo Repository, orderID uuid.UUID, actorType enums.ActorType, actorID *uuid.UUID, event, detail string) error {
	row := models.OrderEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		ActorType: actorType,
		ActorID:   actorID,
		Event:     event,
	}
	if detail != "" {
		row.Detail = &detail
	}
	if err := repo.CreateEvent(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}
	return nil
}

func transitionAllowed(current, target enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == target {
			return true
		}
	}
	return false
}
