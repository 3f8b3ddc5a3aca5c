package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// Payment records one vendor's share of an order's monetary lifecycle.
// Refunds accumulate against VendorAmount and never exceed it.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID          uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PlatformFee       decimal.Decimal     `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	VendorAmount      decimal.Decimal     `gorm:"column:vendor_amount;type:numeric(12,2);not null"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;not null;default:'PENDING'"`
	RefundAmount      decimal.Decimal     `gorm:"column:refund_amount;type:numeric(12,2);not null;default:0"`
	RefundStatus      enums.RefundStatus  `gorm:"column:refund_status;not null;default:'NONE'"`
	RefundReason      *string             `gorm:"column:refund_reason"`
	RazorpayOrderID   *string             `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string             `gorm:"column:razorpay_payment_id;index"`
	RazorpayRefundID  *string             `gorm:"column:razorpay_refund_id"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
