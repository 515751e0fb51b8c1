package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/internal/payments"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
)

type stubAdapter struct {
	method  enums.PaymentMethod
	result  *orders.FinalizeResult
	err     error
	lastReq payments.Request
	calls   int
}

func (s *stubAdapter) Method() enums.PaymentMethod { return s.method }

func (s *stubAdapter) Finalize(_ context.Context, req payments.Request) (*orders.FinalizeResult, error) {
	s.calls++
	s.lastReq = req
	return s.result, s.err
}

type stubResolver map[enums.PaymentMethod]payments.Adapter

func (s stubResolver) Resolve(method enums.PaymentMethod) (payments.Adapter, error) {
	adapter, ok := s[method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is not available")
	}
	return adapter, nil
}

type stubIntentOpener struct {
	resp    *payments.IntentResponse
	err     error
	lastReq payments.IntentRequest
}

func (s *stubIntentOpener) CreateIntent(_ context.Context, req payments.IntentRequest) (*payments.IntentResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func TestPaymentCODFinalizes(t *testing.T) {
	userID := uuid.New()
	adapter := &stubAdapter{method: enums.PaymentMethodCOD, result: codFinalizeResult(userID)}

	req := authedRequest(http.MethodPost, "/api/v1/payments/cod", strings.NewReader(`{"order_number":"20261019ABC"}`), userID)
	resp := httptest.NewRecorder()
	PaymentCOD(stubResolver{enums.PaymentMethodCOD: adapter}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, userID, adapter.lastReq.UserID)
	require.Equal(t, "20261019ABC", adapter.lastReq.OrderNumber)

	env := decodeEnvelope[orders.Receipt](t, resp)
	require.True(t, env.Data.Order.OrderTotal.Equal(decimal.NewFromInt(204)))
	require.Len(t, env.Data.Lines, 1)
}

func TestPaymentOnlinePassesTransaction(t *testing.T) {
	userID := uuid.New()
	adapter := &stubAdapter{method: enums.PaymentMethodOnline, result: codFinalizeResult(userID)}

	body := `{"order_number":"20261019ABC","transaction_id":"pi_123","status":"succeeded"}`
	resp := httptest.NewRecorder()
	PaymentOnline(stubResolver{enums.PaymentMethodOnline: adapter}, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/online", strings.NewReader(body), userID))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "pi_123", adapter.lastReq.TransactionID)
	require.Equal(t, "succeeded", adapter.lastReq.Status)
}

func TestPaymentGatewayCallbackReportsSuccess(t *testing.T) {
	userID := uuid.New()
	adapter := &stubAdapter{method: enums.PaymentMethodSignedGateway, result: codFinalizeResult(userID)}

	body := `{"order_number":"20261019ABC","intent_id":"order_1","payment_id":"pay_1","signature":"good"}`
	resp := httptest.NewRecorder()
	PaymentGatewayCallback(stubResolver{enums.PaymentMethodSignedGateway: adapter}, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/callback", strings.NewReader(body), userID))

	require.Equal(t, http.StatusOK, resp.Code)
	env := decodeEnvelope[struct {
		Success     bool   `json:"success"`
		OrderNumber string `json:"order_number"`
		PaymentID   string `json:"payment_id"`
		orders.Receipt
	}](t, resp)
	require.True(t, env.Data.Success)
	require.Equal(t, "20261019ABC", env.Data.OrderNumber)
	require.Equal(t, "COD-20261019ABC", env.Data.PaymentID)
	require.Len(t, env.Data.Lines, 1)
}

func TestPaymentGatewayCallbackBadSignature(t *testing.T) {
	adapter := &stubAdapter{
		method: enums.PaymentMethodSignedGateway,
		err:    pkgerrors.New(pkgerrors.CodePaymentVerification, "signature mismatch"),
	}

	body := `{"order_number":"20261019ABC","intent_id":"order_1","payment_id":"pay_1","signature":"bad"}`
	resp := httptest.NewRecorder()
	PaymentGatewayCallback(stubResolver{enums.PaymentMethodSignedGateway: adapter}, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/callback", strings.NewReader(body), uuid.New()))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	env := decodeEnvelope[any](t, resp)
	require.Equal(t, string(pkgerrors.CodePaymentVerification), env.Error.Code)
	require.Equal(t, "bad", adapter.lastReq.Signature)
}

func TestPaymentCallbackRequiresFields(t *testing.T) {
	adapter := &stubAdapter{method: enums.PaymentMethodSignedGateway}

	resp := httptest.NewRecorder()
	PaymentGatewayCallback(stubResolver{enums.PaymentMethodSignedGateway: adapter}, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/callback", strings.NewReader(`{"order_number":"X"}`), uuid.New()))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, adapter.calls)
}

func TestPaymentUnavailableMethod(t *testing.T) {
	resp := httptest.NewRecorder()
	body := `{"order_number":"20261019ABC","transaction_id":"pi_123","status":"succeeded"}`
	PaymentOnline(stubResolver{}, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/online", strings.NewReader(body), uuid.New()))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPaymentGatewayIntent(t *testing.T) {
	userID := uuid.New()
	opener := &stubIntentOpener{resp: &payments.IntentResponse{IntentID: "order_1", OrderNumber: "20261019ABC", Amount: 20400, Currency: "INR", KeyID: "rzp_test"}}

	body := `{"order_number":"20261019ABC","amount":"204.00"}`
	resp := httptest.NewRecorder()
	PaymentGatewayIntent(opener, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/intents", strings.NewReader(body), userID))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, userID, opener.lastReq.UserID)
	require.True(t, opener.lastReq.Amount.Equal(decimal.RequireFromString("204")))
	env := decodeEnvelope[payments.IntentResponse](t, resp)
	require.Equal(t, int64(20400), env.Data.Amount)
}

func TestPaymentGatewayIntentValidation(t *testing.T) {
	opener := &stubIntentOpener{}

	resp := httptest.NewRecorder()
	PaymentGatewayIntent(opener, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/intents", strings.NewReader(`{"order_number":"X","amount":"0"}`), uuid.New()))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	PaymentGatewayIntent(nil, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/gateway/intents", strings.NewReader(`{"order_number":"X","amount":"1"}`), uuid.New()))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
