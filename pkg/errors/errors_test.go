package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		expose    bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, expose: true, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, expose: true},
		{code: CodeForbidden, status: http.StatusForbidden, expose: true},
		{code: CodeNotFound, status: http.StatusNotFound, expose: true, detailsOK: true},
		{code: CodeConflict, status: http.StatusConflict, expose: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, expose: true, detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, expose: true, detailsOK: true},
		{code: CodeInFlight, status: http.StatusConflict, retryable: true, expose: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, retryable: true, expose: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodePaymentVerification, status: http.StatusBadRequest, expose: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			require.Equal(t, tt.status, meta.HTTPStatus)
			require.Equal(t, tt.retryable, meta.Retryable)
			require.Equal(t, tt.expose, meta.ExposeMessage)
			require.Equal(t, tt.detailsOK, meta.DetailsAllowed)
			require.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestPublicMessage(t *testing.T) {
	require.Equal(t, "cart is empty", New(CodeValidation, "cart is empty").PublicMessage())
	require.Equal(t, "validation failed", New(CodeValidation, "").PublicMessage())
	require.Equal(t, "internal server error", New(CodeInternal, "nil pointer in pricing").PublicMessage())
	require.Equal(t, "dependency unavailable", Wrap(CodeDependency, stdErrors.New("timeout"), "razorpay").PublicMessage())
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing sku")
	require.Equal(t, CodeValidation, base.Code())
	require.Equal(t, "missing sku", base.Message())
	require.Nil(t, base.Details())
	require.Equal(t, "VALIDATION_ERROR: missing sku", base.Error())

	base.WithDetails(map[string]any{"field": "sku"})
	require.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve stock")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "CONFLICT: reserve stock: boom", wrapped.Error())

	formatted := Newf(CodeNotFound, "order %s not found", "ORD-7")
	require.Equal(t, "order ORD-7 not found", formatted.Message())
}

func TestNilErrorAccessors(t *testing.T) {
	var e *Error
	require.Empty(t, e.Error())
	require.Nil(t, e.Unwrap())
	require.Nil(t, e.WithDetails("x"))
}

func TestAsAndIsCodeFollowWrappedChain(t *testing.T) {
	inner := New(CodeNotFound, "order not found")
	outer := fmt.Errorf("lookup: %w", inner)

	require.Same(t, inner, As(outer))
	require.Nil(t, As(nil))
	require.Nil(t, As(stdErrors.New("plain")))
	require.True(t, IsCode(outer, CodeNotFound))
	require.False(t, IsCode(outer, CodeConflict))
	require.False(t, IsCode(nil, CodeNotFound))
}

func TestRetryable(t *testing.T) {
	require.False(t, Retryable(nil))
	require.True(t, Retryable(stdErrors.New("untyped")))
	require.True(t, Retryable(fmt.Errorf("wrap: %w", New(CodeRateLimit, "slow down"))))
	require.False(t, Retryable(New(CodeValidation, "bad")))
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection reset"), "load order")
	dump := Dump(err)

	require.Equal(t, CodeDependency, dump.Code)
	require.True(t, dump.Retryable)
	require.Len(t, dump.Chain, 2)
	require.Nil(t, dump.Postgres)

	fields := dump.Fields()
	require.Equal(t, CodeDependency, fields["error_code"])
	require.NotContains(t, fields, "pg_code")
	require.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpReadsPostgresErrors(t *testing.T) {
	pgx := fmt.Errorf("insert order: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_order_number_key",
		TableName:      "orders",
		Detail:         "Key (order_number)=(ORD-1) already exists.",
	})
	dump := Dump(pgx)
	require.NotNil(t, dump.Postgres)
	require.Equal(t, "23505", dump.Postgres.Code)
	require.Equal(t, "orders_order_number_key", dump.Fields()["pg_constraint"])

	pqErr := &pq.Error{Code: "23503", Table: "order_lines", Constraint: "order_lines_order_id_fkey"}
	dump = Dump(pqErr)
	require.NotNil(t, dump.Postgres)
	require.Equal(t, "23503", dump.Postgres.Code)
	require.Equal(t, "order_lines", dump.Postgres.Table)
}
