package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GalleryImage is an extra product photo shown on the detail page.
type GalleryImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (GalleryImage) TableName() string { return "product_gallery_images" }

func (g *GalleryImage) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
