package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
)

// Snapshot is the checkout-time view of a cart. Every line was revalidated
// against the live product row inside the caller's transaction; unit prices
// come from the product, never from the cart line.
type Snapshot struct {
	CartID uuid.UUID
	Lines  []SnapshotLine
	Total  decimal.Decimal
}

// SnapshotLine is one revalidated cart line.
type SnapshotLine struct {
	ProductID   uuid.UUID
	VendorID    uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Snapshot revalidates the buyer's cart on the caller's transaction handle.
// It rejects empty carts, missing or inactive products, unverified vendors
// and quantities beyond current stock. The stock check here is advisory; the
// ledger's conditional deduction is what actually reserves units.
func (s *service) Snapshot(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*Snapshot, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction handle required")
	}

	repo := s.repo.WithTx(tx)
	verifier := s.verifier.WithTx(tx)

	record, err := repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(record.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	verifiedVendors := map[uuid.UUID]bool{}
	snapshot := &Snapshot{
		CartID: record.ID,
		Lines:  make([]SnapshotLine, 0, len(record.Lines)),
		Total:  decimal.Zero,
	}

	for _, line := range record.Lines {
		product, err := repo.FindProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, unavailableLine(line.ProductID, "product no longer exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil, unavailableLine(product.ID, fmt.Sprintf("%s is no longer available", product.Name))
		}

		verified, ok := verifiedVendors[product.VendorID]
		if !ok {
			verified, err = verifier.IsVendorVerified(ctx, product.VendorID)
			if err != nil {
				return nil, err
			}
			verifiedVendors[product.VendorID] = verified
		}
		if !verified {
			return nil, unavailableLine(product.ID, fmt.Sprintf("vendor for %s is not verified", product.Name))
		}

		if line.Quantity > product.Stock {
			return nil, insufficientStock(product, line.Quantity)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		snapshot.Lines = append(snapshot.Lines, SnapshotLine{
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    subtotal,
		})
		snapshot.Total = snapshot.Total.Add(subtotal)
	}

	return snapshot, nil
}

func unavailableLine(productID uuid.UUID, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"product_id": productID.String()})
}
