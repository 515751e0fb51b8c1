package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine snapshots one purchased product at the price and variations in
// effect when the order was finalized. Rows are never updated.
type OrderLine struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentID        uuid.UUID       `gorm:"column:payment_id;type:uuid;not null"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName      string          `gorm:"column:product_name;not null"`
	Quantity         int             `gorm:"column:quantity;not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ColorVariationID *uuid.UUID      `gorm:"column:color_variation_id;type:uuid"`
	ColorValue       *string         `gorm:"column:color_value"`
	SizeVariationID  *uuid.UUID      `gorm:"column:size_variation_id;type:uuid"`
	SizeValue        *string         `gorm:"column:size_value"`
	Ordered          bool            `gorm:"column:ordered;not null;default:true"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// LineTotal is unit price times quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
