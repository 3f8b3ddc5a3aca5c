package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/pagination"
)

// Service defines notification list/read operations for a recipient.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// Notifier emits durable notifications. Callers treat emission as
// fire-and-forget: an emit failure is logged and never fails the
// surrounding operation.
type Notifier interface {
	StockAlert(ctx context.Context, alert StockAlert) error
	OrderPlaced(ctx context.Context, vendorID uuid.UUID, order models.Order, itemCount int) error
	OrderCancelled(ctx context.Context, vendorID uuid.UUID, order models.Order, reason string) error
	OrderDelivered(ctx context.Context, buyerID uuid.UUID, order models.Order) error
	RefundIssued(ctx context.Context, buyerID uuid.UUID, orderNumber string, amount decimal.Decimal) error
}

// StockAlert describes a threshold crossing on a single product.
type StockAlert struct {
	VendorID    uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Stock       int
	Threshold   int
	Type        enums.NotificationType
}

type service struct {
	repo Repository
}

// ListParams configures pagination for notifications.
type ListParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// NewNotifier returns the emit-side view over the same repository.
func NewNotifier(repo Repository) (Notifier, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listNotificationsParams{
		RecipientID: params.RecipientID,
		Limit:       pagination.LimitWithBuffer(params.Limit),
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, recipientID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	count, err := s.repo.MarkAllRead(ctx, recipientID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) StockAlert(ctx context.Context, alert StockAlert) error {
	if alert.VendorID == uuid.Nil || alert.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor and product ids required")
	}
	if !alert.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid stock alert type")
	}

	var title, body string
	switch alert.Type {
	case enums.NotificationTypeOutOfStock:
		title = "Product out of stock"
		body = fmt.Sprintf("%s is out of stock.", alert.ProductName)
	case enums.NotificationTypeStockRestored:
		title = "Product back in stock"
		body = fmt.Sprintf("%s is back in stock (%d units).", alert.ProductName, alert.Stock)
	default:
		title = "Low stock warning"
		body = fmt.Sprintf("%s is down to %d units (threshold %d).", alert.ProductName, alert.Stock, alert.Threshold)
	}

	return s.emit(ctx, &models.Notification{
		RecipientID: alert.VendorID,
		Type:        alert.Type,
		Title:       title,
		Body:        body,
		Metadata: map[string]any{
			"product_id": alert.ProductID.String(),
			"stock":      alert.Stock,
			"threshold":  alert.Threshold,
		},
	})
}

func (s *service) OrderPlaced(ctx context.Context, vendorID uuid.UUID, order models.Order, itemCount int) error {
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	return s.emit(ctx, &models.Notification{
		RecipientID: vendorID,
		Type:        enums.NotificationTypeOrderPlaced,
		Title:       "New order received",
		Body:        fmt.Sprintf("Order %s placed with %d of your items.", order.OrderNumber, itemCount),
		Metadata: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
}

func (s *service) OrderCancelled(ctx context.Context, vendorID uuid.UUID, order models.Order, reason string) error {
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	return s.emit(ctx, &models.Notification{
		RecipientID: vendorID,
		Type:        enums.NotificationTypeOrderCancelled,
		Title:       "Order cancelled",
		Body:        fmt.Sprintf("Order %s was cancelled: %s", order.OrderNumber, reason),
		Metadata: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"reason":       reason,
		},
	})
}

func (s *service) OrderDelivered(ctx context.Context, buyerID uuid.UUID, order models.Order) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.emit(ctx, &models.Notification{
		RecipientID: buyerID,
		Type:        enums.NotificationTypeOrderDelivered,
		Title:       "Order delivered",
		Body:        fmt.Sprintf("Order %s has been delivered.", order.OrderNumber),
		Metadata: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
}

func (s *service) RefundIssued(ctx context.Context, buyerID uuid.UUID, orderNumber string, amount decimal.Decimal) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.emit(ctx, &models.Notification{
		RecipientID: buyerID,
		Type:        enums.NotificationTypeRefundIssued,
		Title:       "Refund issued",
		Body:        fmt.Sprintf("A refund of ₹%s was issued for order %s.", amount.StringFixed(2), orderNumber),
		Metadata: map[string]any{
			"order_number": orderNumber,
			"amount":       amount.StringFixed(2),
		},
	})
}

func (s *service) emit(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist notification")
	}
	return nil
}
