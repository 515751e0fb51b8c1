package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/smartshop-backend/api/middleware"
	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/api/validators"
	"github.com/angelmondragon/smartshop-backend/internal/cart"
	"github.com/angelmondragon/smartshop-backend/internal/checkout"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

type CheckoutService interface {
	Quote(ctx context.Context, owner cart.Owner) (*checkout.Quote, error)
	PlaceOrder(ctx context.Context, input checkout.PlaceOrderInput) (*checkout.PlaceOrderResult, error)
}

const (
	billingFieldMax = 255
	orderNoteMax    = 1000
)

type placeOrderRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	AddressLine1  string `json:"address_line_1"`
	AddressLine2  string `json:"address_line_2"`
	Country       string `json:"country"`
	State         string `json:"state"`
	City          string `json:"city"`
	OrderNote     string `json:"order_note"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

func (p placeOrderRequest) billing() checkout.Billing {
	return checkout.Billing{
		FirstName:    validators.SanitizeString(p.FirstName, billingFieldMax),
		LastName:     validators.SanitizeString(p.LastName, billingFieldMax),
		Phone:        validators.SanitizeString(p.Phone, billingFieldMax),
		Email:        validators.SanitizeString(p.Email, billingFieldMax),
		AddressLine1: validators.SanitizeString(p.AddressLine1, billingFieldMax),
		AddressLine2: validators.SanitizeString(p.AddressLine2, billingFieldMax),
		Country:      validators.SanitizeString(p.Country, billingFieldMax),
		State:        validators.SanitizeString(p.State, billingFieldMax),
		City:         validators.SanitizeString(p.City, billingFieldMax),
		OrderNote:    validators.SanitizeString(p.OrderNote, orderNoteMax),
	}
}

type placeOrderResponse struct {
	Order   checkout.DraftView `json:"order"`
	Quote   checkout.Quote     `json:"quote"`
	Receipt *orders.Receipt    `json:"receipt,omitempty"`
}

// CheckoutQuote prices the caller's cart. An empty cart carries a redirect hint.
func CheckoutQuote(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Quote(r.Context(), cart.ForUser(userID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutPlaceOrder persists the order draft. Cash on delivery settles it in
// the same request and the receipt is returned alongside the draft.
func CheckoutPlaceOrder(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			UserID:        userID,
			Billing:       payload.billing(),
			PaymentMethod: validators.SanitizeString(payload.PaymentMethod, billingFieldMax),
			IP:            middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := placeOrderResponse{Order: result.Order, Quote: result.Quote}
		if result.Finalized != nil {
			receipt := orders.ReceiptFor(result.Finalized)
			resp.Receipt = &receipt
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
