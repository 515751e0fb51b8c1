package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

type productReader interface {
	ListAvailable(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariation(ctx context.Context, productID, variationID uuid.UUID, category enums.VariationCategory) (*models.Variation, error)
	ApprovedReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	FindReview(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error)
	UpsertReview(ctx context.Context, review *models.Review) error
}

// Service exposes catalog lookups and customer reviews.
type Service interface {
	List(ctx context.Context, filter ProductFilter) ([]ProductSummary, error)
	Get(ctx context.Context, slug string, viewerID uuid.UUID) (*ProductDetail, error)
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Variation(ctx context.Context, productID, variationID uuid.UUID, category enums.VariationCategory) (*models.Variation, error)
	SubmitReview(ctx context.Context, input ReviewInput) (*ReviewResult, error)
}

type service struct {
	repo productReader
}

// NewService builds the catalog service.
func NewService(repo productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// ProductSummary is the list projection of a product.
type ProductSummary struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	Category    string          `json:"category,omitempty"`
	Description *string         `json:"description,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
}

// ProductDetail adds stock, the selectable variations, the gallery and the
// approved reviews. Purchased is true when the viewer has bought the product
// and may therefore review it.
type ProductDetail struct {
	ProductSummary
	Stock         int             `json:"stock"`
	Colors        []VariationView `json:"colors"`
	Sizes         []VariationView `json:"sizes"`
	Gallery       []string        `json:"gallery"`
	Reviews       []ReviewView    `json:"reviews"`
	ReviewCount   int             `json:"review_count"`
	AverageRating decimal.Decimal `json:"average_rating"`
	Purchased     bool            `json:"purchased"`
}

// VariationView is a selectable variation value.
type VariationView struct {
	ID    uuid.UUID `json:"id"`
	Value string    `json:"value"`
}

func (s *service) List(ctx context.Context, filter ProductFilter) ([]ProductSummary, error) {
	filter.CategorySlug = strings.ToLower(strings.TrimSpace(filter.CategorySlug))
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	products, err := s.repo.ListAvailable(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return lo.Map(products, func(p models.Product, _ int) ProductSummary {
		return summarize(p)
	}), nil
}

// Get loads the product page. viewerID is uuid.Nil for anonymous callers.
func (s *service) Get(ctx context.Context, slug string, viewerID uuid.UUID) (*ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	reviews, err := s.repo.ApprovedReviews(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviews")
	}
	purchased := false
	if viewerID != uuid.Nil {
		if purchased, err = s.repo.HasPurchased(ctx, viewerID, product.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
		}
	}

	toView := func(v models.Variation, _ int) VariationView {
		return VariationView{ID: v.ID, Value: v.Value}
	}
	colors := lo.Filter(product.Variations, func(v models.Variation, _ int) bool { return v.Category == enums.VariationColor })
	sizes := lo.Filter(product.Variations, func(v models.Variation, _ int) bool { return v.Category == enums.VariationSize })

	return &ProductDetail{
		ProductSummary: summarize(*product),
		Stock:          product.Stock,
		Colors:         lo.Map(colors, toView),
		Sizes:          lo.Map(sizes, toView),
		Gallery:        lo.Map(product.Gallery, func(g models.GalleryImage, _ int) string { return g.URL }),
		Reviews:        lo.Map(reviews, func(r models.Review, _ int) ReviewView { return reviewView(r) }),
		ReviewCount:    len(reviews),
		AverageRating:  averageRating(reviews),
		Purchased:      purchased,
	}, nil
}

func (s *service) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil || !product.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) Variation(ctx context.Context, productID, variationID uuid.UUID, category enums.VariationCategory) (*models.Variation, error) {
	variation, err := s.repo.FindVariation(ctx, productID, variationID, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation")
	}
	if variation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s variation not available for product", category)).
			WithDetails(map[string]any{"field": string(category) + "_variation_id"})
	}
	return variation, nil
}

func summarize(p models.Product) ProductSummary {
	summary := ProductSummary{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Price:       p.Price,
		InStock:     p.Stock > 0,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
	if p.Category != nil {
		summary.Category = p.Category.Slug
	}
	return summary
}
