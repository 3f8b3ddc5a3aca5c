package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, notification *models.Notification) error
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	markReadFn    func(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, notification)
	}
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, recipientID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, recipientID, now)
	}
	return 0, nil
}

func TestListReturnsCursorForNextPage(t *testing.T) {
	t.Parallel()

	recipient := uuid.New()
	next := pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
			if params.RecipientID != recipient {
				t.Fatalf("unexpected recipient: %s", params.RecipientID)
			}
			return []models.Notification{{ID: uuid.New(), RecipientID: recipient}}, &next, nil
		},
	}

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{RecipientID: recipient, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected next-page cursor")
	}
	parsed, err := pagination.ParseCursor(result.Cursor)
	if err != nil || parsed == nil || parsed.ID != next.ID {
		t.Fatalf("cursor did not round-trip: %v %v", parsed, err)
	}
}

func TestListRejectsInvalidCursor(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.List(context.Background(), ListParams{RecipientID: uuid.New(), Cursor: "not-base64!!"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkReadNotFound(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkReadAlreadyReadIsNoError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: false}, nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected idempotent mark read, got %v", err)
	}
}

func TestStockAlertPersistsNotification(t *testing.T) {
	t.Parallel()

	vendor := uuid.New()
	product := uuid.New()
	var captured *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			captured = notification
			return nil
		},
	}

	notifier, err := NewNotifier(repo)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	err = notifier.StockAlert(context.Background(), StockAlert{
		VendorID:    vendor,
		ProductID:   product,
		ProductName: "Alphonso Mangoes",
		Stock:       3,
		Threshold:   10,
		Type:        enums.NotificationTypeLowStock,
	})
	if err != nil {
		t.Fatalf("stock alert: %v", err)
	}
	if captured == nil {
		t.Fatal("expected notification row")
	}
	if captured.RecipientID != vendor || captured.Type != enums.NotificationTypeLowStock {
		t.Fatalf("unexpected notification: %+v", captured)
	}
	if captured.Metadata["product_id"] != product.String() {
		t.Fatalf("expected product metadata, got %v", captured.Metadata)
	}
}

func TestRefundIssuedFormatsAmount(t *testing.T) {
	t.Parallel()

	var captured *models.Notification
	repo := &fakeRepository{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			captured = notification
			return nil
		},
	}
	notifier, err := NewNotifier(repo)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	if err := notifier.RefundIssued(context.Background(), uuid.New(), "ORD-1-0001", decimal.NewFromFloat(249.5)); err != nil {
		t.Fatalf("refund issued: %v", err)
	}
	if captured == nil || captured.Metadata["amount"] != "249.50" {
		t.Fatalf("expected formatted amount, got %+v", captured)
	}
}
