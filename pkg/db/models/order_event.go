package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// OrderEvent is the append-only audit trail for an order. Replaces free-text
// note concatenation with queryable rows.
type OrderEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ActorType enums.ActorType `gorm:"column:actor_type;not null"`
	ActorID   *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Event     string          `gorm:"column:event;not null"`
	Detail    *string         `gorm:"column:detail"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
