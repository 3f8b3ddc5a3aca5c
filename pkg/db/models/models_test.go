package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The goose migrations own the Postgres schema; the model tags only have to
// produce a schema sqlite can build, because every service test harness runs
// AutoMigrate against an in-memory sqlite database.
func TestModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.AutoMigrate(
		&User{}, &VendorProfile{}, &Product{},
		&Cart{}, &CartLine{},
		&Order{}, &OrderItem{}, &OrderEvent{},
		&Payment{}, &StockAdjustment{}, &Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	product := Product{
		ID:       uuid.New(),
		VendorID: uuid.New(),
		Name:     "Turmeric",
		Category: "spices",
		Images:   pq.StringArray{"a.jpg", "b.jpg"},
		Price:    decimal.RequireFromString("120.00"),
		Unit:     "kg",
		Stock:    12,
		IsActive: true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	var loaded Product
	if err := db.First(&loaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if len(loaded.Images) != 2 || loaded.Images[0] != "a.jpg" {
		t.Fatalf("unexpected images round trip: %v", loaded.Images)
	}
	if !loaded.Price.Equal(product.Price) {
		t.Fatalf("unexpected price round trip: %s", loaded.Price)
	}
}
