package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
)

// Repository persists cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LineRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListLines returns the owner's lines with product and variation snapshots, oldest first.
func (r *Repository) ListLines(ctx context.Context, owner Owner) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := owner.scope(r.db.WithContext(ctx)).
		Preload("Product").
		Preload("ColorVariation").
		Preload("SizeVariation").
		Order("cart_lines.created_at ASC").
		Order("cart_lines.id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// FindLine loads a single line owned by owner, or nil when it does not exist.
func (r *Repository) FindLine(ctx context.Context, owner Owner, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := owner.scope(r.db.WithContext(ctx)).
		Where("cart_lines.id = ?", lineID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

// FindMatchingLine returns the line holding the same product and variation pair.
func (r *Repository) FindMatchingLine(ctx context.Context, owner Owner, productID uuid.UUID, colorID, sizeID *uuid.UUID) (*models.CartLine, error) {
	query := owner.scope(r.db.WithContext(ctx)).Where("cart_lines.product_id = ?", productID)
	query = matchNullable(query, "cart_lines.color_variation_id", colorID)
	query = matchNullable(query, "cart_lines.size_variation_id", sizeID)

	var line models.CartLine
	if err := query.First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

// Create inserts a new line.
func (r *Repository) Create(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateQuantity overwrites the quantity of a line.
func (r *Repository) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// Delete removes a line.
func (r *Repository) Delete(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.CartLine{}).Error
}

// DeleteByOwner clears the owner's cart and reports how many lines were removed.
func (r *Repository) DeleteByOwner(ctx context.Context, owner Owner) (int64, error) {
	res := owner.scope(r.db.WithContext(ctx)).Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

// Reassign moves a guest line to the user's cart.
func (r *Repository) Reassign(ctx context.Context, lineID uuid.UUID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Updates(map[string]any{
			"user_id":    userID,
			"session_id": gorm.Expr("NULL"),
		}).Error
}

func matchNullable(query *gorm.DB, column string, value *uuid.UUID) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}
