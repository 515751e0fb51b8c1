package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

var (
	minRating  = decimal.RequireFromString("0.5")
	maxRating  = decimal.NewFromInt(5)
	ratingStep = decimal.RequireFromString("0.5")
)

// ReviewInput is a customer's rating of a product addressed by slug.
type ReviewInput struct {
	UserID  uuid.UUID
	Slug    string
	Subject string
	Body    string
	Rating  decimal.Decimal
	IP      string
}

// ReviewView is the public projection of an approved review.
type ReviewView struct {
	ID        uuid.UUID       `json:"id"`
	Subject   string          `json:"subject"`
	Body      string          `json:"review"`
	Rating    decimal.Decimal `json:"rating"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReviewResult reports whether the submission created a review or replaced
// the caller's earlier one.
type ReviewResult struct {
	Review  ReviewView `json:"review"`
	Created bool       `json:"created"`
}

// SubmitReview stores the caller's review. Only users holding a paid order
// line for the product may review it; a second submission overwrites the
// first.
func (s *service) SubmitReview(ctx context.Context, input ReviewInput) (*ReviewResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	purchased, err := s.repo.HasPurchased(ctx, input.UserID, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
	}
	if !purchased {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers who bought this product can review it")
	}

	existing, err := s.repo.FindReview(ctx, input.UserID, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	review := &models.Review{
		ProductID: product.ID,
		UserID:    input.UserID,
		Subject:   strings.TrimSpace(input.Subject),
		Body:      strings.TrimSpace(input.Body),
		Rating:    input.Rating,
		IP:        input.IP,
		Approved:  true,
	}
	if err := s.repo.UpsertReview(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review")
	}
	stored, err := s.repo.FindReview(ctx, input.UserID, product.ID)
	if err != nil || stored == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
	}
	return &ReviewResult{Review: reviewView(*stored), Created: existing == nil}, nil
}

func validateRating(rating decimal.Decimal) error {
	if rating.LessThan(minRating) || rating.GreaterThan(maxRating) || !rating.Mod(ratingStep).IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"rating": "must be between 0.5 and 5 in steps of 0.5"})
	}
	return nil
}

func reviewView(r models.Review) ReviewView {
	return ReviewView{
		ID:        r.ID,
		Subject:   r.Subject,
		Body:      r.Body,
		Rating:    r.Rating,
		UpdatedAt: r.UpdatedAt,
	}
}

func averageRating(reviews []models.Review) decimal.Decimal {
	if len(reviews) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, r := range reviews {
		sum = sum.Add(r.Rating)
	}
	return sum.Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
}
