package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

// User is the minimal identity row the engine joins against. Account
// management itself lives in a separate service.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
