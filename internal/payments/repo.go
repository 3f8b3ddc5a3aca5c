package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
)

// Repository exposes the payment persistence the reconciliation and refund
// flows need.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateOrderPayments(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindVendorPayment(ctx context.Context, paymentID, vendorID uuid.UUID) (*models.Payment, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	CreateOrderEvent(ctx context.Context, event *models.OrderEvent) error
	ListVendorPayments(ctx context.Context, vendorID uuid.UUID) ([]models.Payment, error)
	VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error)
}

// VendorSummary aggregates a vendor's payment rows.
type VendorSummary struct {
	PaymentCount  int64           `json:"payment_count"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	PlatformFees  decimal.Decimal `json:"platform_fees"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindOrderByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("razorpay_payment_id = ?", gatewayPaymentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repositoryImpl) UpdateOrderPayments(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}

func (r *repositoryImpl) FindVendorPayment(ctx context.Context, paymentID, vendorID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id = ? AND vendor_id = ?", paymentID, vendorID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) ListOrderPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *repositoryImpl) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

func (r *repositoryImpl) CreateOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) ListVendorPayments(ctx context.Context, vendorID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *repositoryImpl) VendorSummary(ctx context.Context, vendorID uuid.UUID) (*VendorSummary, error) {
	payments, err := r.ListVendorPayments(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	summary := &VendorSummary{
		GrossAmount:   decimal.Zero,
		PlatformFees:  decimal.Zero,
		NetAmount:     decimal.Zero,
		RefundedTotal: decimal.Zero,
	}
	for _, payment := range payments {
		summary.PaymentCount++
		summary.GrossAmount = summary.GrossAmount.Add(payment.Amount)
		summary.PlatformFees = summary.PlatformFees.Add(payment.PlatformFee)
		summary.NetAmount = summary.NetAmount.Add(payment.VendorAmount)
		summary.RefundedTotal = summary.RefundedTotal.Add(payment.RefundAmount)
	}
	return summary, nil
}
