package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/samber/lo"
)

var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS applies the storefront origin policy. Local dev servers are allowed
// only when allowDev is set; origins may use a single "*" wildcard such as
// https://*.smartshop.in.
func CORS(allowDev bool, origins ...string) func(http.Handler) http.Handler {
	allowed := lo.Uniq(lo.Compact(lo.Map(origins, func(o string, _ int) string {
		return strings.TrimSpace(o)
	})))
	if allowDev {
		allowed = lo.Uniq(append(allowed, devOrigins...))
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			CartSessionHeader, IdempotencyHeader, RequestIDHeader,
		},
		ExposedHeaders:   []string{RequestIDHeader, CartSessionHeader, IdempotencyReplayedHeader, "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
