package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// Payment is written once per finalized order. PaymentID is the external
// transaction id, or a locally synthesized one for cash on delivery.
type Payment struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID  string              `gorm:"column:payment_id;not null;uniqueIndex:ux_payments_payment_id"`
	UserID     uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Method     enums.PaymentMethod `gorm:"column:method;type:varchar(32);not null"`
	AmountPaid decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Status     enums.PaymentStatus `gorm:"column:status;type:varchar(32);not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
