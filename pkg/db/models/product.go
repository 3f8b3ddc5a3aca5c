package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is a vendor listing. Stock is the single source of truth for
// availability and is only ever mutated through the stock ledger.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VendorID          uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name              string          `gorm:"column:name;not null"`
	Category          string          `gorm:"column:category;not null"`
	Description       *string         `gorm:"column:description"`
	Images            pq.StringArray  `gorm:"column:images;type:text"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Unit              string          `gorm:"column:unit;not null;default:'kg'"`
	Stock             int             `gorm:"column:stock;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:10"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
