package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_number": "ORD-1"})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "ORD-1", body.Data.(map[string]any)["order_number"])
}

func TestWriteErrorExposesClientMessages(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(requestIDHeader, "01JREQ")
	err := pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
		WithDetails(map[string]string{"field": "quantity"})
	WriteError(context.Background(), quietLogger(), w, fmt.Errorf("add to cart: %w", err))

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	require.Equal(t, "quantity must be positive", body.Error.Message)
	require.Equal(t, "01JREQ", body.Error.RequestID)
	require.False(t, body.Error.Retryable)
	require.NotNil(t, body.Error.Details)
}

func TestWriteErrorHidesInternalText(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), quietLogger(), w, errors.New("dial tcp 10.0.0.4:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	require.Equal(t, "internal server error", body.Error.Message)
	require.True(t, body.Error.Retryable)
	require.Nil(t, body.Error.Details)
}

func TestWriteErrorDependencyKeepsPublicMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("stripe 502"), "create payment intent")
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeError(t, w)
	require.Equal(t, "dependency unavailable", body.Error.Message)
	require.True(t, body.Error.Retryable)
}

func TestWriteErrorInFlight(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeInFlight, "request still processing"))

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeInFlight), body.Error.Code)
	require.True(t, body.Error.Retryable)
}

func TestWriteAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAttachment(w, "invoice-ORD1.html", "text/html; charset=utf-8", []byte("<h1>Invoice ORD1</h1>"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "attachment; filename=invoice-ORD1.html", w.Header().Get("Content-Disposition"))
	require.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	require.Equal(t, "21", w.Header().Get("Content-Length"))
	require.Equal(t, "<h1>Invoice ORD1</h1>", w.Body.String())
}

func TestWriteAttachmentDefaultsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAttachment(w, "blob", "", []byte{1, 2})
	require.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}
