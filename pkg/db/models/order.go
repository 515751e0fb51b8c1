package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// Order is the billed purchase request. It is created unpaid and flips
// IsOrdered exactly once, in the same transaction that writes its Payment.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	FirstName       string              `gorm:"column:first_name;not null"`
	LastName        string              `gorm:"column:last_name;not null"`
	Phone           string              `gorm:"column:phone;not null"`
	Email           string              `gorm:"column:email;not null"`
	AddressLine1    string              `gorm:"column:address_line_1;not null"`
	AddressLine2    *string             `gorm:"column:address_line_2"`
	Country         string              `gorm:"column:country;not null"`
	State           string              `gorm:"column:state;not null"`
	City            string              `gorm:"column:city;not null"`
	OrderNote       *string             `gorm:"column:order_note"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null"`
	OrderTotal      decimal.Decimal     `gorm:"column:order_total;type:numeric(12,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:varchar(32);not null"`
	GatewayIntentID *string             `gorm:"column:gateway_intent_id"`
	PaymentID       *uuid.UUID          `gorm:"column:payment_id;type:uuid"`
	Payment         *Payment            `gorm:"foreignKey:PaymentID"`
	IsOrdered       bool                `gorm:"column:is_ordered;not null;default:false;index"`
	IP              *string             `gorm:"column:ip"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// FullName joins the billing first and last name.
func (o Order) FullName() string {
	if o.LastName == "" {
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}
