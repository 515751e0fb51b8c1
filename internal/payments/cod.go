package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

// COD settles orders paid in cash on delivery. The payment stays Pending
// until the courier collects.
type COD struct {
	orders orderFinalizer
	now    func() time.Time
}

// NewCOD builds the cash-on-delivery adapter.
func NewCOD(finalizer orderFinalizer, now func() time.Time) (*COD, error) {
	if finalizer == nil {
		return nil, fmt.Errorf("order finalizer required")
	}
	if now == nil {
		now = time.Now
	}
	return &COD{orders: finalizer, now: now}, nil
}

func (c *COD) Method() enums.PaymentMethod {
	return enums.PaymentMethodCOD
}

func (c *COD) Finalize(ctx context.Context, req Request) (*orders.FinalizeResult, error) {
	return c.orders.Finalize(ctx, orders.FinalizeRequest{
		UserID:      req.UserID,
		OrderNumber: req.OrderNumber,
		PaymentID:   CODPaymentID(c.now(), req.OrderNumber),
		Method:      enums.PaymentMethodCOD,
		Status:      enums.PaymentStatusPending,
	})
}

// CODPaymentID synthesizes the local payment reference for a COD order.
func CODPaymentID(at time.Time, orderNumber string) string {
	return "COD" + at.UTC().Format("20060102150405") + orderNumber
}
