package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// VendorProfile carries the KYC state that gates a vendor's products from
// being purchased.
type VendorProfile struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BusinessName string          `gorm:"column:business_name;not null"`
	KYCStatus    enums.KYCStatus `gorm:"column:kyc_status;not null;default:'PENDING'"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
