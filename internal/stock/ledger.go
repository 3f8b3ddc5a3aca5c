package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
)

// Ledger is the only writer of products.stock. Every method runs on the
// caller's transaction handle so stock mutations commit or roll back with
// the surrounding order work.
type Ledger interface {
	TryDeduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*Movement, error)
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*Movement, error)
	SetAbsolute(ctx context.Context, tx *gorm.DB, params SetAbsoluteParams) (*Movement, error)
}

// Movement reports a completed stock mutation. Callers use it to decide
// which alerts to emit after the transaction commits.
type Movement struct {
	ProductID     uuid.UUID
	VendorID      uuid.UUID
	ProductName   string
	PreviousStock int
	NewStock      int
	Threshold     int
}

// WentOutOfStock reports a drop to zero.
func (m *Movement) WentOutOfStock() bool {
	return m != nil && m.PreviousStock > 0 && m.NewStock == 0
}

// CrossedLowStock reports a drop through the low-stock threshold.
func (m *Movement) CrossedLowStock() bool {
	return m != nil && m.NewStock > 0 && m.NewStock <= m.Threshold && m.PreviousStock > m.Threshold
}

// RecoveredFromZero reports a restock of a sold-out product.
func (m *Movement) RecoveredFromZero() bool {
	return m != nil && m.PreviousStock == 0 && m.NewStock > 0
}

// AlertType maps the movement onto a notification type, or "" when no
// threshold was crossed.
func (m *Movement) AlertType() enums.NotificationType {
	switch {
	case m.WentOutOfStock():
		return enums.NotificationTypeOutOfStock
	case m.CrossedLowStock():
		return enums.NotificationTypeLowStock
	case m.RecoveredFromZero():
		return enums.NotificationTypeStockRestored
	default:
		return ""
	}
}

// SetAbsoluteParams describes a manual stock overwrite by a vendor.
type SetAbsoluteParams struct {
	ProductID    uuid.UUID
	VendorID     uuid.UUID
	NewStock     int
	NewThreshold *int
	Source       enums.StockChangeSource
	Reason       string
}

type ledgerImpl struct{}

// NewLedger returns the stock ledger.
func NewLedger() Ledger {
	return &ledgerImpl{}
}

// TryDeduct atomically subtracts qty from the product's stock. The guard on
// the UPDATE is the only availability check that counts: concurrent
// checkouts racing for the last units serialize on the row and the loser's
// guard fails.
func (l *ledgerImpl) TryDeduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*Movement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction handle required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("deduction qty must be positive, got %d", qty))
	}

	result := tx.WithContext(ctx).Exec(
		"UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?",
		qty, productID, qty,
	)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "deduct stock")
	}
	if result.RowsAffected == 0 {
		product, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %s: have %d, want %d", product.Name, product.Stock, qty)).
			WithDetails(map[string]any{
				"product_id": productID.String(),
				"available":  product.Stock,
				"requested":  qty,
			})
	}

	product, err := loadProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	return &Movement{
		ProductID:     product.ID,
		VendorID:      product.VendorID,
		ProductName:   product.Name,
		PreviousStock: product.Stock + qty,
		NewStock:      product.Stock,
		Threshold:     product.LowStockThreshold,
	}, nil
}

// Restore adds qty back unconditionally, used on cancellations.
func (l *ledgerImpl) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*Movement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction handle required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("restore qty must be positive, got %d", qty))
	}

	result := tx.WithContext(ctx).Exec(
		"UPDATE products SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		qty, productID,
	)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "restore stock")
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	product, err := loadProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	return &Movement{
		ProductID:     product.ID,
		VendorID:      product.VendorID,
		ProductName:   product.Name,
		PreviousStock: product.Stock - qty,
		NewStock:      product.Stock,
		Threshold:     product.LowStockThreshold,
	}, nil
}

// SetAbsolute overwrites a product's stock level for its owning vendor and
// records a StockAdjustment audit row.
func (l *ledgerImpl) SetAbsolute(ctx context.Context, tx *gorm.DB, params SetAbsoluteParams) (*Movement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction handle required")
	}
	if params.NewStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if params.NewThreshold != nil && *params.NewThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low stock threshold cannot be negative")
	}
	if !params.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid stock change source")
	}

	var product models.Product
	err := tx.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", params.ProductID, params.VendorID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	updates := map[string]any{"stock": params.NewStock}
	if params.NewThreshold != nil {
		updates["low_stock_threshold"] = *params.NewThreshold
	}
	if err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(updates).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock")
	}

	adjustment := models.StockAdjustment{
		ID:            uuid.New(),
		ProductID:     product.ID,
		VendorID:      params.VendorID,
		PreviousStock: product.Stock,
		NewStock:      params.NewStock,
		Source:        params.Source,
		Reason:        params.Reason,
	}
	if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock adjustment")
	}

	threshold := product.LowStockThreshold
	if params.NewThreshold != nil {
		threshold = *params.NewThreshold
	}
	return &Movement{
		ProductID:     product.ID,
		VendorID:      product.VendorID,
		ProductName:   product.Name,
		PreviousStock: product.Stock,
		NewStock:      params.NewStock,
		Threshold:     threshold,
	}, nil
}

func loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "vendor_id", "name", "stock", "low_stock_threshold").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
