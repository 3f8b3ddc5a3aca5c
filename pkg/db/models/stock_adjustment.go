package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// StockAdjustment is the audit row written for every absolute stock change
// made outside the checkout/cancellation flows.
type StockAdjustment struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	VendorID      uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null;index"`
	PreviousStock int                     `gorm:"column:previous_stock;not null"`
	NewStock      int                     `gorm:"column:new_stock;not null"`
	Source        enums.StockChangeSource `gorm:"column:source;not null"`
	Reason        string                  `gorm:"column:reason;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
