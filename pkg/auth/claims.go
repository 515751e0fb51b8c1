package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Shopper identifies the signed-in customer a token is issued for.
type Shopper struct {
	ID    uuid.UUID
	Email string
	JTI   string
}

// ShopperClaims is the JWT body. Tokens come from the identity provider and
// the storefront only verifies them; Issue exists for tooling and tests.
type ShopperClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; jwt/v5 calls it through
// jwt.ClaimsValidator.
func (c ShopperClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token missing user_id")
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user_id")
	}
	return nil
}
