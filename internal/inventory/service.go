package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/notifications"
	"github.com/agrolinkhq/agrolink-backend/internal/stock"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
	"github.com/agrolinkhq/agrolink-backend/pkg/logger"
)

const movementWindow = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	SetAbsolute(ctx context.Context, tx *gorm.DB, params stock.SetAbsoluteParams) (*stock.Movement, error)
}

type notifier interface {
	StockAlert(ctx context.Context, alert notifications.StockAlert) error
}

// Service exposes the vendor's inventory views and stock mutations.
type Service interface {
	Overview(ctx context.Context, vendorID uuid.UUID) (*Overview, error)
	Alerts(ctx context.Context, vendorID uuid.UUID) ([]ProductAlert, error)
	Movements(ctx context.Context, vendorID uuid.UUID) ([]models.StockAdjustment, error)
	SetStock(ctx context.Context, vendorID uuid.UUID, input SetStockInput) (*models.Product, error)
	BulkSetStock(ctx context.Context, vendorID uuid.UUID, items []SetStockInput) (*BulkOutcome, error)
}

// Overview aggregates a vendor's catalog position.
type Overview struct {
	ProductCount    int             `json:"product_count"`
	ActiveCount     int             `json:"active_count"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
	StockValue      decimal.Decimal `json:"stock_value"`
	AdjustmentCount int             `json:"adjustment_count_30d"`
	UnitsSold       int64           `json:"units_sold_30d"`
}

// ProductAlert flags a product at or below its threshold.
type ProductAlert struct {
	ProductID   uuid.UUID              `json:"product_id"`
	ProductName string                 `json:"product_name"`
	Stock       int                    `json:"stock"`
	Threshold   int                    `json:"threshold"`
	Type        enums.NotificationType `json:"type"`
}

// SetStockInput is one absolute stock write.
type SetStockInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Stock     int       `json:"stock"`
	Threshold *int      `json:"threshold,omitempty"`
	Reason    string    `json:"reason"`
}

// BulkItemResult reports one line of a bulk update.
type BulkItemResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Updated   bool      `json:"updated"`
	Error     string    `json:"error,omitempty"`
}

// BulkOutcome is the per-item breakdown of a bulk update. A bulk request
// succeeds as a whole even when individual lines fail.
type BulkOutcome struct {
	Updated int              `json:"updated"`
	Failed  int              `json:"failed"`
	Results []BulkItemResult `json:"results"`
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger stockLedger
	notify notifier
	logg   *logger.Logger
}

// NewService builds the inventory service.
func NewService(repo Repository, tx txRunner, ledger stockLedger, notify notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
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
	return &service{repo: repo, tx: tx, ledger: ledger, notify: notify, logg: logg}, nil
}

func (s *service) Overview(ctx context.Context, vendorID uuid.UUID) (*Overview, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	products, err := s.repo.ListVendorProducts(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	since := time.Now().Add(-movementWindow)
	adjustments, err := s.repo.RecentAdjustments(ctx, vendorID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	sold, err := s.repo.UnitsSold(ctx, vendorID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum units sold")
	}

	overview := &Overview{
		ProductCount:    len(products),
		StockValue:      decimal.Zero,
		AdjustmentCount: len(adjustments),
		UnitsSold:       sold,
	}
	for _, product := range products {
		if product.IsActive {
			overview.ActiveCount++
		}
		switch {
		case product.Stock == 0:
			overview.OutOfStockCount++
		case product.Stock <= product.LowStockThreshold:
			overview.LowStockCount++
		}
		overview.StockValue = overview.StockValue.
			Add(product.Price.Mul(decimal.NewFromInt(int64(product.Stock))))
	}
	return overview, nil
}

func (s *service) Alerts(ctx context.Context, vendorID uuid.UUID) ([]ProductAlert, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	products, err := s.repo.ListVendorProducts(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	alerts := make([]ProductAlert, 0)
	for _, product := range products {
		var alertType enums.NotificationType
		switch {
		case product.Stock == 0:
			alertType = enums.NotificationTypeOutOfStock
		case product.Stock <= product.LowStockThreshold:
			alertType = enums.NotificationTypeLowStock
		default:
			continue
		}
		alerts = append(alerts, ProductAlert{
			ProductID:   product.ID,
			ProductName: product.Name,
			Stock:       product.Stock,
			Threshold:   product.LowStockThreshold,
			Type:        alertType,
		})
	}
	return alerts, nil
}

func (s *service) Movements(ctx context.Context, vendorID uuid.UUID) ([]models.StockAdjustment, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	adjustments, err := s.repo.RecentAdjustments(ctx, vendorID, time.Now().Add(-movementWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	return adjustments, nil
}

func (s *service) SetStock(ctx context.Context, vendorID uuid.UUID, input SetStockInput) (*models.Product, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if err := validateSetStock(input); err != nil {
		return nil, err
	}

	var movement *stock.Movement
	var product *models.Product

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		movement, terr = s.ledger.SetAbsolute(ctx, tx, stock.SetAbsoluteParams{
			ProductID:    input.ProductID,
			VendorID:     vendorID,
			NewStock:     input.Stock,
			NewThreshold: input.Threshold,
			Source:       enums.StockChangeSourceManual,
			Reason:       strings.TrimSpace(input.Reason),
		})
		if terr != nil {
			return terr
		}

		product, terr = s.repo.WithTx(tx).FindVendorProduct(ctx, input.ProductID, vendorID)
		if terr != nil {
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, terr, "reload product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAlert(ctx, movement)
	return product, nil
}

// BulkSetStock applies each line in its own transaction so one bad product
// does not block the rest of the sheet.
func (s *service) BulkSetStock(ctx context.Context, vendorID uuid.UUID, items []SetStockInput) (*BulkOutcome, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	outcome := &BulkOutcome{Results: make([]BulkItemResult, 0, len(items))}
	for _, item := range items {
		result := BulkItemResult{ProductID: item.ProductID}

		_, err := s.SetStock(ctx, vendorID, item)
		if err != nil {
			result.Error = err.Error()
			outcome.Failed++
			s.logg.Warn(ctx, fmt.Sprintf("bulk stock update failed for product %s: %v", item.ProductID, err))
		} else {
			result.Updated = true
			outcome.Updated++
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome, nil
}

func (s *service) emitAlert(ctx context.Context, movement *stock.Movement) {
	alertType := movement.AlertType()
	if alertType == "" {
		return
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

func validateSetStock(input SetStockInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if input.Threshold != nil && *input.Threshold < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "threshold cannot be negative")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return nil
}
