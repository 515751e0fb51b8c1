package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productCatalog interface {
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Variation(ctx context.Context, productID, variationID uuid.UUID, category enums.VariationCategory) (*models.Variation, error)
}

// Service exposes cart mutations and the priced cart view.
type Service interface {
	Get(ctx context.Context, owner Owner) (*View, error)
	Add(ctx context.Context, owner Owner, input AddInput) (*View, error)
	Decrement(ctx context.Context, owner Owner, lineID uuid.UUID) (*View, error)
	Remove(ctx context.Context, owner Owner, lineID uuid.UUID) (*View, error)
	Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*View, error)
}

type service struct {
	repo    LineRepository
	tx      txRunner
	catalog productCatalog
	taxRate decimal.Decimal
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo LineRepository, tx txRunner, catalog productCatalog, taxRate decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		taxRate: taxRate,
	}, nil
}

// AddInput selects a product and its optional variations.
type AddInput struct {
	ProductID        uuid.UUID
	ColorVariationID *uuid.UUID
	SizeVariationID  *uuid.UUID
	Quantity         int
}

// View is the cart as shown to the shopper.
type View struct {
	Lines  []LineView `json:"lines"`
	Totals Totals     `json:"totals"`
}

// LineView is one priced cart line.
type LineView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Color       *string         `json:"color,omitempty"`
	Size        *string         `json:"size,omitempty"`
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.view(ctx, s.repo, owner)
}

func (s *service) Add(ctx context.Context, owner Owner, input AddInput) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.catalog.Product(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if input.ColorVariationID != nil {
		if _, err := s.catalog.Variation(ctx, product.ID, *input.ColorVariationID, enums.VariationColor); err != nil {
			return nil, err
		}
	}
	if input.SizeVariationID != nil {
		if _, err := s.catalog.Variation(ctx, product.ID, *input.SizeVariationID, enums.VariationSize); err != nil {
			return nil, err
		}
	}

	var view *View
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindMatchingLine(ctx, owner, product.ID, input.ColorVariationID, input.SizeVariationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		quantity := input.Quantity
		if existing != nil {
			quantity += existing.Quantity
		}
		if quantity > product.Stock {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{"product_id": product.ID.String(), "available": product.Stock})
		}

		if existing != nil {
			if err := repo.UpdateQuantity(ctx, existing.ID, quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
		} else {
			line := &models.CartLine{
				ProductID:        product.ID,
				Quantity:         quantity,
				ColorVariationID: input.ColorVariationID,
				SizeVariationID:  input.SizeVariationID,
			}
			owner.assign(line)
			if err := repo.Create(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
		}

		view, err = s.view(ctx, repo, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Decrement(ctx context.Context, owner Owner, lineID uuid.UUID) (*View, error) {
	return s.mutateLine(ctx, owner, lineID, func(repo LineRepository, line *models.CartLine) error {
		if line.Quantity > 1 {
			return repo.UpdateQuantity(ctx, line.ID, line.Quantity-1)
		}
		return repo.Delete(ctx, line.ID)
	})
}

func (s *service) Remove(ctx context.Context, owner Owner, lineID uuid.UUID) (*View, error) {
	return s.mutateLine(ctx, owner, lineID, func(repo LineRepository, line *models.CartLine) error {
		return repo.Delete(ctx, line.ID)
	})
}

// Merge folds the guest session cart into the user's cart. Lines for the same
// product and variations add their quantities; the rest are re-owned.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	guest := ForSession(sessionID)
	user := ForUser(userID)
	if err := guest.Validate(); err != nil {
		return nil, err
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		guestLines, err := repo.ListLines(ctx, guest)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
		}
		for _, line := range guestLines {
			match, err := repo.FindMatchingLine(ctx, user, line.ProductID, line.ColorVariationID, line.SizeVariationID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart line")
			}
			if match == nil {
				if err := repo.Reassign(ctx, line.ID, userID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign cart line")
				}
				continue
			}
			if err := repo.UpdateQuantity(ctx, match.ID, match.Quantity+line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
			}
			if err := repo.Delete(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest cart line")
			}
		}
		view, err = s.view(ctx, repo, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) mutateLine(ctx context.Context, owner Owner, lineID uuid.UUID, fn func(repo LineRepository, line *models.CartLine) error) (*View, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line, err := repo.FindLine(ctx, owner, lineID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		if err := fn(repo, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
		}
		view, err = s.view(ctx, repo, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) view(ctx context.Context, repo LineRepository, owner Owner) (*View, error) {
	lines, err := repo.ListLines(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &View{
		Lines:  lo.Map(lines, func(line models.CartLine, _ int) LineView { return toLineView(line) }),
		Totals: ComputeTotals(lines, s.taxRate),
	}, nil
}

func toLineView(line models.CartLine) LineView {
	view := LineView{
		ID:        line.ID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		LineTotal: LinePrice(line),
	}
	if line.Product != nil {
		view.ProductName = line.Product.Name
		view.ProductSlug = line.Product.Slug
		view.UnitPrice = line.Product.Price
	}
	if line.ColorVariation != nil {
		view.Color = &line.ColorVariation.Value
	}
	if line.SizeVariation != nil {
		view.Size = &line.SizeVariation.Value
	}
	return view
}
