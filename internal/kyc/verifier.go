package kyc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
)

// Verifier answers whether a vendor may sell. Only vendors with a VERIFIED
// KYC status have purchasable listings.
type Verifier interface {
	WithTx(tx *gorm.DB) Verifier
	IsVendorVerified(ctx context.Context, vendorID uuid.UUID) (bool, error)
}

type verifierImpl struct {
	db *gorm.DB
}

// NewVerifier returns a Verifier backed by the vendor_profiles table.
func NewVerifier(db *gorm.DB) (Verifier, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "kyc database handle required")
	}
	return &verifierImpl{db: db}, nil
}

func (v *verifierImpl) WithTx(tx *gorm.DB) Verifier {
	if tx == nil {
		return v
	}
	return &verifierImpl{db: tx}
}

func (v *verifierImpl) IsVendorVerified(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	if vendorID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	var profile models.VendorProfile
	err := v.db.WithContext(ctx).
		Select("kyc_status").
		Where("user_id = ?", vendorID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor profile")
	}
	return profile.KYCStatus == enums.KYCStatusVerified, nil
}
