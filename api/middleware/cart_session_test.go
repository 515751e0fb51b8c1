package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCartSessionCopiesHeader(t *testing.T) {
	var got string
	handler := CartSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CartSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CartSessionHeader, "  guest-123 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "guest-123", got)
}

func TestCartSessionRejectsMalformedHeader(t *testing.T) {
	handler := CartSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, value := range []string{strings.Repeat("a", maxCartSessionBytes+1), "guest 123"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set(CartSessionHeader, value)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	}
}
