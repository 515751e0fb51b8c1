package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/api/middleware"
	"github.com/angelmondragon/smartshop-backend/api/responses"
	"github.com/angelmondragon/smartshop-backend/api/validators"
	"github.com/angelmondragon/smartshop-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

type CatalogReader interface {
	List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.ProductSummary, error)
	Get(ctx context.Context, slug string, viewerID uuid.UUID) (*catalog.ProductDetail, error)
	SubmitReview(ctx context.Context, input catalog.ReviewInput) (*catalog.ReviewResult, error)
}

type productListQuery struct {
	Category string `query:"category" validate:"omitempty,max=64,slug"`
	Keyword  string `query:"q" validate:"omitempty,max=100"`
}

const (
	reviewSubjectMax = 100
	reviewBodyMax    = 500
)

type reviewRequest struct {
	Subject string          `json:"subject" validate:"max=100"`
	Review  string          `json:"review" validate:"max=500"`
	Rating  decimal.Decimal `json:"rating"`
}

// ProductList returns purchasable products, optionally narrowed to one
// category slug and a keyword matched against name and description.
func ProductList(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var q productListQuery
		if err := validators.DecodeQuery(r, &q); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.List(r.Context(), catalog.ProductFilter{CategorySlug: q.Category, Keyword: q.Keyword})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products, "count": len(products)})
	}
}

// ProductDetail returns one product with its variations, gallery and
// reviews. Signed-in callers also learn whether they bought it.
func ProductDetail(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		slug := productSlug(r)
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required"))
			return
		}

		viewer, err := userIDFromRequest(r)
		if err != nil {
			viewer = uuid.Nil
		}
		product, err := svc.Get(r.Context(), slug, viewer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductReviewSubmit creates or replaces the caller's review of a product
// they have bought.
func ProductReviewSubmit(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slug := productSlug(r)
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required"))
			return
		}

		var req reviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SubmitReview(r.Context(), catalog.ReviewInput{
			UserID:  userID,
			Slug:    slug,
			Subject: validators.SanitizeString(req.Subject, reviewSubjectMax),
			Body:    validators.SanitizeString(req.Review, reviewBodyMax),
			Rating:  req.Rating,
			IP:      middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Created {
			responses.WriteSuccessStatus(w, http.StatusCreated, result)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func productSlug(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))
}
