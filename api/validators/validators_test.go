package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

type lineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=100"`
}

func decode(t *testing.T, body string) (lineRequest, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", strings.NewReader(body))
	var dest lineRequest
	err := DecodeJSONBody(req, &dest)
	return dest, err
}

func requireValidation(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return typed
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"product_id":"2f1c6c2e-8a9b-4f7e-9d1a-3b6c0e5d4a21","quantity":3}`)
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(t, `{"product_id":"2f1c6c2e-8a9b-4f7e-9d1a-3b6c0e5d4a21","coupon":"FREE"}`)
	requireValidation(t, err)
}

func TestDecodeJSONBodyRejectsEmptyBody(t *testing.T) {
	_, err := decode(t, ``)
	typed := requireValidation(t, err)
	require.Equal(t, "request body is required", typed.Message())
}

func TestDecodeJSONBodyRejectsTrailingDocument(t *testing.T) {
	_, err := decode(t, `{"product_id":"2f1c6c2e-8a9b-4f7e-9d1a-3b6c0e5d4a21"}{"quantity":2}`)
	requireValidation(t, err)
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	padding := strings.Repeat(" ", int(MaxBodyBytes))
	_, err := decode(t, padding+`{"product_id":"2f1c6c2e-8a9b-4f7e-9d1a-3b6c0e5d4a21"}`)
	typed := requireValidation(t, err)
	require.Equal(t, "request body too large", typed.Message())
}

func TestDecodeJSONBodyReportsFieldErrorsByJSONName(t *testing.T) {
	_, err := decode(t, `{"product_id":"nope","quantity":500}`)
	typed := requireValidation(t, err)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid id", details["product_id"])
	require.Equal(t, "must be at most 100", details["quantity"])
}

type listQuery struct {
	Limit    int    `query:"limit" validate:"min=1,max=100"`
	Cursor   string `query:"cursor" validate:"omitempty,max=16"`
	Category string `query:"category" validate:"omitempty,slug"`
}

func decodeQuery(t *testing.T, target string) (listQuery, error) {
	t.Helper()
	q := listQuery{Limit: 25}
	err := DecodeQuery(httptest.NewRequest(http.MethodGet, target, nil), &q)
	return q, err
}

func TestDecodeQueryAppliesValuesAndDefaults(t *testing.T) {
	q, err := decodeQuery(t, "/api/v1/orders?limit=30&cursor=%20abc%20")
	require.NoError(t, err)
	require.Equal(t, listQuery{Limit: 30, Cursor: "abc"}, q)

	q, err = decodeQuery(t, "/api/v1/orders")
	require.NoError(t, err)
	require.Equal(t, 25, q.Limit)

	q, err = decodeQuery(t, "/api/v1/products?limit=&category=home-decor")
	require.NoError(t, err)
	require.Equal(t, 25, q.Limit)
	require.Equal(t, "home-decor", q.Category)
}

func TestDecodeQueryRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		target string
		field  string
	}{
		"non numeric":  {target: "/api/v1/orders?limit=abc", field: "limit"},
		"out of range": {target: "/api/v1/orders?limit=500", field: "limit"},
		"zero":         {target: "/api/v1/orders?limit=0", field: "limit"},
		"long cursor":  {target: "/api/v1/orders?cursor=" + strings.Repeat("x", 17), field: "cursor"},
		"bad slug":     {target: "/api/v1/products?category=Home%20Decor", field: "category"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeQuery(t, tc.target)
			typed := requireValidation(t, err)
			details, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			require.Contains(t, details, tc.field)
		})
	}
}

func TestDecodeQueryReportsMalformedNumbers(t *testing.T) {
	_, err := decodeQuery(t, "/api/v1/orders?limit=12abc&cursor=ok")
	typed := requireValidation(t, err)
	require.Equal(t, "invalid query parameters", typed.Message())
	require.Equal(t, map[string]string{"limit": "is malformed"}, typed.Details())
}

func TestDecodeQueryRequiresStructPointer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=1", nil)
	require.Error(t, DecodeQuery(req, listQuery{}))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "Asha", SanitizeString("  Asha \n", 0))
	require.Equal(t, "abc", SanitizeString("abcdef", 3))
	// "é" is two bytes; a cut through it drops the partial rune.
	require.Equal(t, "ab", SanitizeString("abé", 3))
}

func TestQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/complete?order_number=%20202610190001%20", nil)
	require.Equal(t, "202610190001", QueryString(req, "order_number", 64))
}
