package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// Notification is a durable fire-and-forget message to a vendor or buyer.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index"`
	Type        enums.NotificationType `gorm:"column:type;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Body        string                 `gorm:"column:body;not null"`
	Metadata    map[string]any         `gorm:"column:metadata;type:jsonb;serializer:json"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}
