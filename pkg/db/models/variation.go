package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// Variation is a selectable color or size for a product.
type Variation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	Category  enums.VariationCategory `gorm:"column:category;type:varchar(16);not null"`
	Value     string                  `gorm:"column:value;not null"`
	IsActive  bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (v *Variation) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
