package kyc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
)

func TestIsVendorVerified(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	verified := uuid.New()
	pending := uuid.New()
	for _, profile := range []models.VendorProfile{
		{ID: uuid.New(), UserID: verified, BusinessName: "Green Acres", KYCStatus: enums.KYCStatusVerified},
		{ID: uuid.New(), UserID: pending, BusinessName: "New Farm", KYCStatus: enums.KYCStatusPending},
	} {
		if err := db.Create(&profile).Error; err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}

	v, err := NewVerifier(db)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	ok, err := v.IsVendorVerified(ctx, verified)
	if err != nil || !ok {
		t.Fatalf("expected verified vendor, got ok=%v err=%v", ok, err)
	}
	ok, err = v.IsVendorVerified(ctx, pending)
	if err != nil || ok {
		t.Fatalf("expected pending vendor to be unverified, got ok=%v err=%v", ok, err)
	}
	ok, err = v.IsVendorVerified(ctx, uuid.New())
	if err != nil || ok {
		t.Fatalf("expected missing profile to be unverified, got ok=%v err=%v", ok, err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:kyc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.VendorProfile{}); err != nil {
		t.Fatalf("migrate profiles: %v", err)
	}
	return db
}
