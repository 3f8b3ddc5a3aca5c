package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrolinkhq/agrolink-backend/internal/kyc"
	"github.com/agrolinkhq/agrolink-backend/pkg/db/models"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the buyer's cart operations.
type Service interface {
	Get(ctx context.Context, buyerID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
	Snapshot(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*Snapshot, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	verifier kyc.Verifier
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, verifier kyc.Verifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("kyc verifier required")
	}
	return &service{repo: repo, tx: tx, verifier: verifier}, nil
}

// View is the cart as shown to the buyer. Prices are re-read live so the
// view never goes stale, whatever PriceAtAddTime recorded.
type View struct {
	CartID uuid.UUID       `json:"cart_id"`
	Items  []ItemView      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// ItemView is one cart line joined against the live product row.
type ItemView struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	PriceAtAdd   decimal.Decimal `json:"price_at_add"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Available    bool            `json:"available"`
}

func (s *service) Get(ctx context.Context, buyerID uuid.UUID) (*View, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	cart, err := s.repo.FindOrCreate(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.buildView(ctx, s.repo, cart)
}

func (s *service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error) {
	if err := validateLineInput(buyerID, productID, qty); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := loadPurchasableProduct(ctx, repo, productID)
		if err != nil {
			return err
		}

		cart, err := repo.FindOrCreate(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		line, err := repo.FindLine(ctx, cart.ID, productID)
		switch {
		case err == nil:
			line.Quantity += qty
		case errors.Is(err, gorm.ErrRecordNotFound):
			line = &models.CartLine{
				ID:             uuid.New(),
				CartID:         cart.ID,
				ProductID:      productID,
				Quantity:       qty,
				PriceAtAddTime: product.Price,
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if line.Quantity > product.Stock {
			return insufficientStock(product, line.Quantity)
		}
		if err := repo.SaveLine(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}

		view, err = s.reloadView(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*View, error) {
	if err := validateLineInput(buyerID, productID, qty); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := loadPurchasableProduct(ctx, repo, productID)
		if err != nil {
			return err
		}

		cart, err := repo.FindByBuyer(ctx, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		line, err := repo.FindLine(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if qty > product.Stock {
			return insufficientStock(product, qty)
		}
		line.Quantity = qty
		if err := repo.SaveLine(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}

		view, err = s.reloadView(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*View, error) {
	if buyerID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and product ids required")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByBuyer(ctx, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		removed, err := repo.DeleteLine(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}

		view, err = s.reloadView(ctx, repo, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByBuyer(ctx, buyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.ClearLines(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
}

func (s *service) reloadView(ctx context.Context, repo Repository, buyerID uuid.UUID) (*View, error) {
	cart, err := repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.buildView(ctx, repo, cart)
}

func (s *service) buildView(ctx context.Context, repo Repository, cart *models.Cart) (*View, error) {
	view := &View{
		CartID: cart.ID,
		Items:  make([]ItemView, 0, len(cart.Lines)),
		Total:  decimal.Zero,
	}

	for _, line := range cart.Lines {
		product, err := repo.FindProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				view.Items = append(view.Items, ItemView{
					ProductID:  line.ProductID,
					Quantity:   line.Quantity,
					PriceAtAdd: line.PriceAtAddTime,
					Available:  false,
				})
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		available := product.IsActive && product.Stock >= line.Quantity
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Items = append(view.Items, ItemView{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Unit:         product.Unit,
			Quantity:     line.Quantity,
			PriceAtAdd:   line.PriceAtAddTime,
			CurrentPrice: product.Price,
			Subtotal:     subtotal,
			Available:    available,
		})
		if available {
			view.Total = view.Total.Add(subtotal)
		}
	}
	return view, nil
}

func validateLineInput(buyerID, productID uuid.UUID, qty int) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}

func loadPurchasableProduct(ctx context.Context, repo Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

func insufficientStock(product *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict,
		fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(map[string]any{
			"product_id": product.ID.String(),
			"available":  product.Stock,
			"requested":  requested,
		})
}
