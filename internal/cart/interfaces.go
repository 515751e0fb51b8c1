package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
)

// LineRepository captures the persistence surface of the cart store.
type LineRepository interface {
	WithTx(tx *gorm.DB) LineRepository
	ListLines(ctx context.Context, owner Owner) ([]models.CartLine, error)
	FindLine(ctx context.Context, owner Owner, lineID uuid.UUID) (*models.CartLine, error)
	FindMatchingLine(ctx context.Context, owner Owner, productID uuid.UUID, colorID, sizeID *uuid.UUID) (*models.CartLine, error)
	Create(ctx context.Context, line *models.CartLine) error
	UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	Delete(ctx context.Context, lineID uuid.UUID) error
	DeleteByOwner(ctx context.Context, owner Owner) (int64, error)
	Reassign(ctx context.Context, lineID uuid.UUID, userID uuid.UUID) error
}
