package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/internal/cart"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/internal/payments"
	dbpkg "github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

const orderNumberAttempts = 3

type cartReader interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.View, error)
}

type orderWriter interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

type adapterResolver interface {
	Resolve(method enums.PaymentMethod) (payments.Adapter, error)
}

// Service builds order drafts from the shopper's cart.
type Service interface {
	Quote(ctx context.Context, owner cart.Owner) (*Quote, error)
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
}

type service struct {
	carts    cartReader
	orders   orderWriter
	adapters adapterResolver
	numbers  OrderNumberGenerator
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Carts    cartReader
	Orders   orderWriter
	Adapters adapterResolver
	Numbers  OrderNumberGenerator
	Currency string
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewService builds the checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Adapters == nil {
		return nil, fmt.Errorf("payment adapters required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewOrderNumberGenerator()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		carts:    params.Carts,
		orders:   params.Orders,
		adapters: params.Adapters,
		numbers:  numbers,
		currency: strings.ToUpper(strings.TrimSpace(params.Currency)),
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Quote is the priced cart the shopper is about to order.
type Quote struct {
	Lines      []cart.LineView `json:"lines"`
	Totals     cart.Totals     `json:"totals"`
	Currency   string          `json:"currency"`
	EmptyCart  bool            `json:"empty_cart"`
	RedirectTo string          `json:"redirect_to,omitempty"`
}

// Billing is the address and contact block captured at checkout.
type Billing struct {
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	AddressLine1 string
	AddressLine2 string
	Country      string
	State        string
	City         string
	OrderNote    string
}

// PlaceOrderInput is a checkout submission.
type PlaceOrderInput struct {
	UserID        uuid.UUID
	Billing       Billing
	PaymentMethod string
	IP            string
}

// DraftView is the persisted order draft.
type DraftView struct {
	OrderNumber   string              `json:"order_number"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	IsOrdered     bool                `json:"is_ordered"`
	CreatedAt     time.Time           `json:"created_at"`
}

// PlaceOrderResult carries the draft and, for cash on delivery, the payment.
type PlaceOrderResult struct {
	Order     DraftView              `json:"order"`
	Quote     Quote                  `json:"quote"`
	Finalized *orders.FinalizeResult `json:"finalized,omitempty"`
}

func (s *service) Quote(ctx context.Context, owner cart.Owner) (*Quote, error) {
	view, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	quote := &Quote{
		Lines:    view.Lines,
		Totals:   view.Totals,
		Currency: s.currency,
	}
	if len(view.Lines) == 0 {
		quote.EmptyCart = true
		quote.RedirectTo = emptyCartRedirect
	}
	return quote, nil
}

// PlaceOrder rejects an empty cart first, then validates the billing block,
// persists an unpaid order for the current cart and, for cash on delivery,
// settles it right away.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	quote, err := s.Quote(ctx, cart.ForUser(input.UserID))
	if err != nil {
		return nil, err
	}
	if quote.EmptyCart {
		return nil, emptyCartError()
	}

	billing, err := normalizeBilling(input.Billing)
	if err != nil {
		return nil, err
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
			WithDetails(map[string]any{"field": "payment_method"})
	}
	adapter, err := s.adapters.Resolve(method)
	if err != nil {
		return nil, err
	}

	order := models.Order{
		UserID:        input.UserID,
		FirstName:     billing.FirstName,
		LastName:      billing.LastName,
		Phone:         billing.Phone,
		Email:         billing.Email,
		AddressLine1:  billing.AddressLine1,
		AddressLine2:  optional(billing.AddressLine2),
		Country:       billing.Country,
		State:         billing.State,
		City:          billing.City,
		OrderNote:     optional(billing.OrderNote),
		Subtotal:      quote.Totals.Subtotal,
		Tax:           quote.Totals.Tax,
		OrderTotal:    quote.Totals.GrandTotal,
		PaymentMethod: method,
		IP:            optional(input.IP),
	}
	if err := s.createWithNumber(ctx, &order); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderNumber(ctx, order.OrderNumber), map[string]any{
		"user_id":        input.UserID.String(),
		"payment_method": string(method),
		"order_total":    order.OrderTotal.StringFixed(2),
	})
	s.logg.Info(logCtx, "order draft created")

	result := &PlaceOrderResult{
		Order: DraftView{
			OrderNumber:   order.OrderNumber,
			PaymentMethod: order.PaymentMethod,
			CreatedAt:     order.CreatedAt,
		},
		Quote: *quote,
	}
	if method != enums.PaymentMethodCOD {
		return result, nil
	}

	finalized, err := adapter.Finalize(ctx, payments.Request{UserID: input.UserID, OrderNumber: order.OrderNumber})
	if err != nil {
		return nil, err
	}
	result.Order.IsOrdered = true
	result.Finalized = finalized
	return result, nil
}

func (s *service) createWithNumber(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number
		err = s.orders.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !dbpkg.IsUniqueViolation(err, "ux_orders_order_number") && !dbpkg.IsUniqueViolation(err, "orders.order_number") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order.ID = uuid.Nil
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique order number")
}
