package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var (
	ErrNoSecret  = errors.New("jwt secret is required")
	ErrNoIssuer  = errors.New("jwt issuer is required")
	ErrMalformed = errors.New("malformed authorization header")
)

// Issue signs a token for shopper valid for cfg.ExpirationMinutes from now.
func Issue(cfg config.JWTConfig, now time.Time, shopper Shopper) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case cfg.Issuer == "":
		return "", ErrNoIssuer
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case shopper.ID == uuid.Nil:
		return "", errors.New("shopper id is required")
	}

	jti := strings.TrimSpace(shopper.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := ShopperClaims{
		UserID: shopper.ID,
		Email:  strings.ToLower(strings.TrimSpace(shopper.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   shopper.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and time window (with cfg.Leeway) and
// returns the shopper claims.
func Verify(cfg config.JWTConfig, token string) (*ShopperClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	claims := &ShopperClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value. An
// empty header yields "" and no error.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformed
	}
	return token, nil
}
