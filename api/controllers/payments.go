package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/api/validators"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/internal/payments"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

type PaymentResolver interface {
	Resolve(method enums.PaymentMethod) (payments.Adapter, error)
}

// GatewayIntents opens signed gateway intents. It is nil when the gateway is not configured.
type GatewayIntents interface {
	CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.IntentResponse, error)
}

type codPaymentRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
}

type onlinePaymentRequest struct {
	OrderNumber   string `json:"order_number" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Status        string `json:"status" validate:"required"`
}

type gatewayIntentRequest struct {
	OrderNumber string          `json:"order_number" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type gatewayCallbackRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
	IntentID    string `json:"intent_id" validate:"required"`
	PaymentID   string `json:"payment_id" validate:"required"`
	Signature   string `json:"signature" validate:"required"`
}

// gatewayCallbackResponse flattens the receipt next to the settled identifiers.
type gatewayCallbackResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number"`
	PaymentID   string `json:"payment_id"`
	orders.Receipt
}

// PaymentCOD settles an existing unpaid draft as cash on delivery.
func PaymentCOD(adapters PaymentResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload codPaymentRequest
		result := finalizeWith(w, r, adapters, logg, enums.PaymentMethodCOD, &payload, func() payments.Request {
			return payments.Request{OrderNumber: payload.OrderNumber}
		})
		if result != nil {
			responses.WriteSuccess(w, orders.ReceiptFor(result))
		}
	}
}

// PaymentOnline settles a draft whose payment the browser already confirmed.
func PaymentOnline(adapters PaymentResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload onlinePaymentRequest
		result := finalizeWith(w, r, adapters, logg, enums.PaymentMethodOnline, &payload, func() payments.Request {
			return payments.Request{
				OrderNumber:   payload.OrderNumber,
				TransactionID: payload.TransactionID,
				Status:        payload.Status,
			}
		})
		if result != nil {
			responses.WriteSuccess(w, orders.ReceiptFor(result))
		}
	}
}

// PaymentGatewayCallback verifies the signed gateway callback and settles the draft.
func PaymentGatewayCallback(adapters PaymentResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload gatewayCallbackRequest
		result := finalizeWith(w, r, adapters, logg, enums.PaymentMethodSignedGateway, &payload, func() payments.Request {
			return payments.Request{
				OrderNumber: payload.OrderNumber,
				IntentID:    payload.IntentID,
				PaymentID:   payload.PaymentID,
				Signature:   payload.Signature,
			}
		})
		if result == nil {
			return
		}
		responses.WriteSuccess(w, gatewayCallbackResponse{
			Success:     true,
			OrderNumber: result.Order.OrderNumber,
			PaymentID:   result.Payment.PaymentID,
			Receipt:     orders.ReceiptFor(result),
		})
	}
}

// PaymentGatewayIntent opens a gateway intent for an unpaid draft.
func PaymentGatewayIntent(gateway GatewayIntents, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment method \"signed_gateway\" is not available"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload gatewayIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
				WithDetails(map[string]any{"field": "amount"}))
			return
		}

		intent, err := gateway.CreateIntent(r.Context(), payments.IntentRequest{
			UserID:      userID,
			OrderNumber: payload.OrderNumber,
			Amount:      payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

// finalizeWith decodes the payload and runs the adapter. It writes the error
// response itself and returns nil on failure.
func finalizeWith(
	w http.ResponseWriter,
	r *http.Request,
	adapters PaymentResolver,
	logg *logger.Logger,
	method enums.PaymentMethod,
	payload any,
	build func() payments.Request,
) *orders.FinalizeResult {
	if adapters == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment adapters unavailable"))
		return nil
	}
	userID, err := userIDFromRequest(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	if err := validators.DecodeJSONBody(r, payload); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}

	adapter, err := adapters.Resolve(method)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}

	req := build()
	req.UserID = userID
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithOrderNumber(ctx, req.OrderNumber)
	}

	result, err := adapter.Finalize(ctx, req)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return nil
	}
	return result
}
