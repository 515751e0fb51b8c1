package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/api/validators"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/pagination"
)

type OrderQueries interface {
	Complete(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*orders.Receipt, error)
	Detail(ctx context.Context, userID uuid.UUID, orderNumber string) (*orders.Receipt, error)
	Invoice(ctx context.Context, userID uuid.UUID, orderNumber, paymentID string) (*orders.Invoice, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error)
}

type orderListQuery struct {
	Limit  int    `query:"limit" validate:"min=1,max=100"`
	Cursor string `query:"cursor" validate:"omitempty,max=128"`
}

// OrderList returns the caller's paid orders, newest first.
func OrderList(svc OrderQueries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := orderListQuery{Limit: pagination.DefaultLimit}
		if err := validators.DecodeQuery(r, &q); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: q.Limit, Cursor: q.Cursor}

		list, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderComplete is the order-complete page projection, addressed by order
// number and payment id.
func OrderComplete(svc OrderQueries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := validators.QueryString(r, "order_number", maxQueryLen)
		paymentID := validators.QueryString(r, "payment_id", maxQueryLen)
		if orderNumber == "" || paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"redirect": "/"}))
			return
		}

		receipt, err := svc.Complete(r.Context(), userID, orderNumber, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// OrderInvoice serves the rendered invoice as a download. Like the complete
// page it needs both the order number and the settled payment id.
func OrderInvoice(svc OrderQueries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := validators.QueryString(r, "order_number", maxQueryLen)
		paymentID := validators.QueryString(r, "payment_id", maxQueryLen)
		if orderNumber == "" || paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"redirect": "/"}))
			return
		}

		invoice, err := svc.Invoice(r.Context(), userID, orderNumber, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAttachment(w, invoice.Filename, invoice.ContentType, invoice.Body)
	}
}

// OrderDetail returns one paid order owned by the caller.
func OrderDetail(svc OrderQueries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		receipt, err := svc.Detail(r.Context(), userID, orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
