package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartLine is one product and variation selection. Exactly one of SessionID
// and UserID is set.
type CartLine struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	Product          *Product   `gorm:"foreignKey:ProductID"`
	Quantity         int        `gorm:"column:quantity;not null"`
	ColorVariationID *uuid.UUID `gorm:"column:color_variation_id;type:uuid"`
	ColorVariation   *Variation `gorm:"foreignKey:ColorVariationID"`
	SizeVariationID  *uuid.UUID `gorm:"column:size_variation_id;type:uuid"`
	SizeVariation    *Variation `gorm:"foreignKey:SizeVariationID"`
	SessionID        *string    `gorm:"column:session_id;index"`
	UserID           *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartLine) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
