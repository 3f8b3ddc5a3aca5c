package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// Repository exposes the vendor-scoped product and movement reads the
// inventory views need.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListVendorProducts(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
	FindVendorProduct(ctx context.Context, productID, vendorID uuid.UUID) (*models.Product, error)
	RecentAdjustments(ctx context.Context, vendorID uuid.UUID, since time.Time) ([]models.StockAdjustment, error)
	UnitsSold(ctx context.Context, vendorID uuid.UUID, since time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) ListVendorProducts(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *repositoryImpl) FindVendorProduct(ctx context.Context, productID, vendorID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", productID, vendorID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repositoryImpl) RecentAdjustments(ctx context.Context, vendorID uuid.UUID, since time.Time) ([]models.StockAdjustment, error) {
	var adjustments []models.StockAdjustment
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND created_at >= ?", vendorID, since).
		Order("created_at DESC").
		Find(&adjustments).Error
	return adjustments, err
}

func (r *repositoryImpl) UnitsSold(ctx context.Context, vendorID uuid.UUID, since time.Time) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("SUM(order_items.quantity)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.vendor_id = ?", vendorID).
		Where("orders.order_status <> ?", enums.OrderStatusCancelled).
		Where("order_items.created_at >= ?", since).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}
