package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/api/middleware"
	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/api/validators"
	"github.com/angelmondragon/smartshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

type CartService interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.View, error)
	Add(ctx context.Context, owner cart.Owner, input cart.AddInput) (*cart.View, error)
	Decrement(ctx context.Context, owner cart.Owner, lineID uuid.UUID) (*cart.View, error)
	Remove(ctx context.Context, owner cart.Owner, lineID uuid.UUID) (*cart.View, error)
	Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*cart.View, error)
}

type addCartLineRequest struct {
	ProductID        uuid.UUID  `json:"product_id" validate:"required"`
	ColorVariationID *uuid.UUID `json:"color_variation_id"`
	SizeVariationID  *uuid.UUID `json:"size_variation_id"`
	Quantity         int        `json:"quantity" validate:"omitempty,min=1,max=100"`
}

type mergeCartRequest struct {
	SessionID string `json:"session_id"`
}

// CartFetch returns the caller's cart with totals.
func CartFetch(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		view, err := svc.Get(r.Context(), cartOwner(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddLine adds a product (and its selected variations) to the cart.
func CartAddLine(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload addCartLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := payload.Quantity
		if quantity == 0 {
			quantity = 1
		}

		view, err := svc.Add(r.Context(), cartOwner(r), cart.AddInput{
			ProductID:        payload.ProductID,
			ColorVariationID: payload.ColorVariationID,
			SizeVariationID:  payload.SizeVariationID,
			Quantity:         quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// CartDecrementLine lowers a line's quantity by one and drops it at zero.
func CartDecrementLine(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return cartLineAction(svc, logg, func(ctx context.Context, owner cart.Owner, lineID uuid.UUID) (*cart.View, error) {
		return svc.Decrement(ctx, owner, lineID)
	})
}

// CartRemoveLine deletes a line regardless of quantity.
func CartRemoveLine(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return cartLineAction(svc, logg, func(ctx context.Context, owner cart.Owner, lineID uuid.UUID) (*cart.View, error) {
		return svc.Remove(ctx, owner, lineID)
	})
}

func cartLineAction(svc CartService, logg *logger.Logger, action func(context.Context, cart.Owner, uuid.UUID) (*cart.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		lineID, err := uuidParam(chi.URLParam(r, "lineId"), "line_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := action(r.Context(), cartOwner(r), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartMerge folds the guest session cart into the authenticated user's cart.
// The session comes from the X-Cart-Session header or the request body.
func CartMerge(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.CartSessionFromContext(r.Context())
		if r.ContentLength != 0 {
			var payload mergeCartRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if s := strings.TrimSpace(payload.SessionID); s != "" {
				sessionID = s
			}
		}
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required").
				WithDetails(map[string]any{"header": middleware.CartSessionHeader}))
			return
		}

		view, err := svc.Merge(r.Context(), userID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
