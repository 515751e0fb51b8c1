package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// Repository reads products, categories and variations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ProductFilter narrows the storefront listing. Empty fields match everything.
type ProductFilter struct {
	CategorySlug string
	Keyword      string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListAvailable returns available products matching the filter, newest first.
// Keyword matches name or description case-insensitively.
func (r *Repository) ListAvailable(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Preload("Category").
		Where("products.is_available = ?", true)
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		query = query.
			Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", slug)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(kw)) + "%"
		query = query.Where(
			`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(products.description, '')) LIKE ? ESCAPE '\')`,
			pattern, pattern,
		)
	}
	var products []models.Product
	if err := query.Order("products.created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindBySlug returns the product with its active variations and gallery, or
// nil when absent.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Variations", "is_active = ?", true).
		Preload("Gallery", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("slug = ?", slug).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindByID returns the product, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// FindVariation returns an active variation of the given category that belongs to the product.
func (r *Repository) FindVariation(ctx context.Context, productID, variationID uuid.UUID, category enums.VariationCategory) (*models.Variation, error) {
	var variation models.Variation
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ? AND category = ? AND is_active = ?", variationID, productID, category, true).
		First(&variation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variation, nil
}

// ApprovedReviews lists the product's visible reviews, most recently edited first.
func (r *Repository) ApprovedReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND approved = ?", productID, true).
		Order("updated_at DESC").
		Find(&reviews).Error
	return reviews, err
}

// HasPurchased reports whether the user has a paid order line for the product.
func (r *Repository) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("user_id = ? AND product_id = ? AND ordered = ?", userID, productID, true).
		Count(&count).Error
	return count > 0, err
}

// FindReview returns the user's review of the product, or nil when absent.
func (r *Repository) FindReview(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// UpsertReview inserts the review or overwrites the user's existing one for
// the same product.
func (r *Repository) UpsertReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"subject", "body", "rating", "ip", "updated_at"}),
		}).
		Create(review).Error
}
