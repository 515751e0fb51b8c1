package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// OrderPlacedLine is one purchased product inside OrderPlacedEvent.
type OrderPlacedLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlacedEvent is emitted in the finalize transaction once an order is paid.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentID     string              `json:"payment_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderTotal    decimal.Decimal     `json:"order_total"`
	Lines         []OrderPlacedLine   `json:"lines"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// OrderInconsistentEvent flags a paid order missing its payment or lines.
type OrderInconsistentEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	MissingPayment bool      `json:"missing_payment"`
	LineCount      int64     `json:"line_count"`
	DetectedAt     time.Time `json:"detected_at"`
}

// OrderDraftExpiredEvent reports an unpaid draft removed by the cleanup job.
type OrderDraftExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderScoped is implemented by payloads that belong to one storefront order.
type OrderScoped interface {
	OrderRef() string
}

func (e OrderPlacedEvent) OrderRef() string       { return e.OrderNumber }
func (e OrderInconsistentEvent) OrderRef() string { return e.OrderNumber }
func (e OrderDraftExpiredEvent) OrderRef() string { return e.OrderNumber }
