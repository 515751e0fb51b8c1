package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Review is one customer's rating of a product. A user holds at most one
// review per product; resubmitting overwrites it.
type Review struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_reviews_user_product,priority:2;index"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reviews_user_product,priority:1"`
	Subject   string          `gorm:"column:subject;not null;default:''"`
	Body      string          `gorm:"column:body;not null;default:''"`
	Rating    decimal.Decimal `gorm:"column:rating;type:numeric(2,1);not null"`
	IP        string          `gorm:"column:ip;not null;default:''"`
	Approved  bool            `gorm:"column:approved;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
