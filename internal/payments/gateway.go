package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/razorpay"
)

type intentCreator interface {
	CreateIntent(ctx context.Context, req razorpay.CreateIntentRequest) (*razorpay.Intent, error)
	KeyID() string
}

type intentStore interface {
	SetGatewayIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
}

// IntentRequest opens a gateway payment for an unpaid order.
type IntentRequest struct {
	UserID      uuid.UUID
	OrderNumber string
	Amount      decimal.Decimal
}

// IntentResponse is handed to the browser checkout widget.
type IntentResponse struct {
	IntentID    string `json:"intent_id"`
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"key_id"`
}

// SignedGateway settles orders through a two-phase gateway: an intent is
// opened server side, then the browser posts back a signed callback.
type SignedGateway struct {
	orders   orderFinalizer
	intents  intentStore
	gateway  intentCreator
	signer   *Signer
	currency currency.Unit
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// SignedGatewayParams wires the signed gateway adapter.
type SignedGatewayParams struct {
	Orders   orderFinalizer
	Intents  intentStore
	Gateway  intentCreator
	Signer   *Signer
	Currency currency.Unit
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// NewSignedGateway validates the dependencies and builds the adapter.
func NewSignedGateway(params SignedGatewayParams) (*SignedGateway, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order finalizer required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Signer == nil {
		return nil, fmt.Errorf("signer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SignedGateway{
		orders:   params.Orders,
		intents:  params.Intents,
		gateway:  params.Gateway,
		signer:   params.Signer,
		currency: params.Currency,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (g *SignedGateway) Method() enums.PaymentMethod {
	return enums.PaymentMethodSignedGateway
}

// CreateIntent is phase one: the amount must equal the order total.
func (g *SignedGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
	order, err := g.orders.Pending(ctx, req.UserID, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	if !req.Amount.Equal(order.OrderTotal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match order total").
			WithDetails(map[string]any{"order_total": order.OrderTotal.StringFixed(2)})
	}

	amount := MinorUnits(order.OrderTotal, g.currency)
	intent, err := g.gateway.CreateIntent(ctx, razorpay.CreateIntentRequest{
		Amount:   amount,
		Currency: g.currency.String(),
		Receipt:  order.OrderNumber,
		Notes:    map[string]string{"user_id": req.UserID.String()},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create gateway intent")
	}
	if err := g.intents.SetGatewayIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gateway intent")
	}

	logCtx := g.logg.WithFields(g.logg.WithOrderNumber(ctx, order.OrderNumber), map[string]any{
		"intent_id": intent.ID,
		"amount":    amount,
	})
	g.logg.Info(logCtx, "gateway intent created")

	return &IntentResponse{
		IntentID:    intent.ID,
		OrderNumber: order.OrderNumber,
		Amount:      amount,
		Currency:    g.currency.String(),
		KeyID:       g.gateway.KeyID(),
	}, nil
}

// Finalize is phase two, the signed callback. A bad signature or an intent id
// that is not the one stored on the order leaves everything untouched.
func (g *SignedGateway) Finalize(ctx context.Context, req Request) (*orders.FinalizeResult, error) {
	intentID := strings.TrimSpace(req.IntentID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if intentID == "" || paymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent_id, payment_id and signature are required")
	}

	order, err := g.orders.Pending(ctx, req.UserID, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := g.verify(ctx, order, intentID, paymentID, req.Signature); err != nil {
		return nil, err
	}

	return g.orders.Finalize(ctx, orders.FinalizeRequest{
		UserID:      req.UserID,
		OrderNumber: order.OrderNumber,
		PaymentID:   paymentID,
		Method:      enums.PaymentMethodSignedGateway,
		Status:      enums.PaymentStatusCompleted,
		Verify: func(current *models.Order) error {
			if !intentMatches(current, intentID) {
				return verificationFailed()
			}
			return nil
		},
	})
}

func (g *SignedGateway) verify(ctx context.Context, order *models.Order, intentID, paymentID, signature string) error {
	if g.signer.Verify(intentID, paymentID, signature) && intentMatches(order, intentID) {
		return nil
	}
	g.metrics.IncSignatureFailure()
	logCtx := g.logg.WithFields(g.logg.WithOrderNumber(ctx, order.OrderNumber), map[string]any{
		"intent_id":  intentID,
		"payment_id": paymentID,
	})
	g.logg.Warn(logCtx, "gateway callback failed signature verification")
	return verificationFailed()
}

func intentMatches(order *models.Order, intentID string) bool {
	return order.GatewayIntentID != nil && *order.GatewayIntentID == intentID
}

func verificationFailed() error {
	return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed")
}
