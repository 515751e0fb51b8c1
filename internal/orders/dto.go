package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// OrderView is the billing snapshot of a paid order.
type OrderView struct {
	OrderNumber   string              `json:"order_number"`
	FullName      string              `json:"full_name"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	AddressLine1  string              `json:"address_line_1"`
	AddressLine2  *string             `json:"address_line_2,omitempty"`
	City          string              `json:"city"`
	State         string              `json:"state"`
	Country       string              `json:"country"`
	OrderNote     *string             `json:"order_note,omitempty"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	OrderTotal    decimal.Decimal     `json:"order_total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
}

// PaymentView is the recorded payment of an order.
type PaymentView struct {
	PaymentID  string              `json:"payment_id"`
	Method     enums.PaymentMethod `json:"method"`
	Status     enums.PaymentStatus `json:"status"`
	AmountPaid decimal.Decimal     `json:"amount_paid"`
	CreatedAt  time.Time           `json:"created_at"`
}

// LineView is one purchased product.
type LineView struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Color       *string         `json:"color,omitempty"`
	Size        *string         `json:"size,omitempty"`
}

// Receipt is the order-complete projection. Subtotal is recomputed from the
// line snapshots.
type Receipt struct {
	Order    OrderView       `json:"order"`
	Payment  PaymentView     `json:"payment"`
	Lines    []LineView      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// OrderSummary is a row of the my-orders list.
type OrderSummary struct {
	OrderNumber   string              `json:"order_number"`
	OrderTotal    decimal.Decimal     `json:"order_total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func buildReceipt(order models.Order, lines []models.OrderLine) Receipt {
	receipt := Receipt{
		Order: OrderView{
			OrderNumber:   order.OrderNumber,
			FullName:      order.FullName(),
			Phone:         order.Phone,
			Email:         order.Email,
			AddressLine1:  order.AddressLine1,
			AddressLine2:  order.AddressLine2,
			City:          order.City,
			State:         order.State,
			Country:       order.Country,
			OrderNote:     order.OrderNote,
			Subtotal:      order.Subtotal,
			Tax:           order.Tax,
			OrderTotal:    order.OrderTotal,
			PaymentMethod: order.PaymentMethod,
			CreatedAt:     order.CreatedAt,
		},
		Lines: lo.Map(lines, func(line models.OrderLine, _ int) LineView {
			return LineView{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.LineTotal(),
				Color:       line.ColorValue,
				Size:        line.SizeValue,
			}
		}),
		Subtotal: lo.Reduce(lines, func(acc decimal.Decimal, line models.OrderLine, _ int) decimal.Decimal {
			return acc.Add(line.LineTotal())
		}, decimal.Zero).Round(2),
	}
	if order.Payment != nil {
		receipt.Payment = PaymentView{
			PaymentID:  order.Payment.PaymentID,
			Method:     order.Payment.Method,
			Status:     order.Payment.Status,
			AmountPaid: order.Payment.AmountPaid,
			CreatedAt:  order.Payment.CreatedAt,
		}
	}
	return receipt
}

func summarize(order models.Order) OrderSummary {
	summary := OrderSummary{
		OrderNumber:   order.OrderNumber,
		OrderTotal:    order.OrderTotal,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	}
	if order.Payment != nil {
		summary.PaymentStatus = order.Payment.Status
	}
	return summary
}

// ReceiptFor projects a finalize result into the receipt shape.
func ReceiptFor(result *FinalizeResult) Receipt {
	order := result.Order
	payment := result.Payment
	order.Payment = &payment
	return buildReceipt(order, result.Lines)
}
