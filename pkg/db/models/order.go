package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	"github.com/agrolinkhq/agrolink-backend/pkg/types"
)

// Order is the durable record of a placed purchase. Items are an immutable
// snapshot taken at creation time.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID           uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index"`
	BuyerRole         enums.BuyerRole       `gorm:"column:buyer_role;not null"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events            []OrderEvent          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalAmount       decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaymentMethod     enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus   `gorm:"column:payment_status;not null;default:'PENDING'"`
	OrderStatus       enums.OrderStatus     `gorm:"column:order_status;not null;default:'PLACED'"`
	ReturnStatus      enums.ReturnStatus    `gorm:"column:return_status;not null;default:'NONE'"`
	DeliveryAddress   types.DeliveryAddress `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	RazorpayOrderID   *string               `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string               `gorm:"column:razorpay_payment_id;uniqueIndex"`
	DeliveredAt       *time.Time            `gorm:"column:delivered_at"`
	Notes             *string               `gorm:"column:notes"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
