package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/api/middleware"
	"github.com/angelmondragon/smartshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

const maxQueryLen = 128

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

// cartOwner prefers the authenticated user and falls back to the guest session.
func cartOwner(r *http.Request) cart.Owner {
	if userID, err := userIDFromRequest(r); err == nil {
		return cart.ForUser(userID)
	}
	return cart.ForSession(middleware.CartSessionFromContext(r.Context()))
}

func uuidParam(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
