package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/internal/cart"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	dbpkg "github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/razorpay"
	"github.com/angelmondragon/smartshop-backend/pkg/stripe"
)

type stubGateway struct {
	intent *razorpay.Intent
	err    error
	got    razorpay.CreateIntentRequest
}

func (s *stubGateway) CreateIntent(_ context.Context, req razorpay.CreateIntentRequest) (*razorpay.Intent, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.intent, nil
}

func (s *stubGateway) KeyID() string { return "rzp_test_key" }

type stubVerifier struct {
	summary *stripe.IntentSummary
	err     error
}

func (s *stubVerifier) LookupPaymentIntent(context.Context, string) (*stripe.IntentSummary, error) {
	return s.summary, s.err
}

type env struct {
	conn      *gorm.DB
	finalizer *orders.Finalizer
	repo      orders.Repository
	metrics   *metrics.CheckoutMetrics
	registry  *prometheus.Registry
	logg      *logger.Logger
	userID    uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := dbtest.Open(t, "payments")
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	repo := orders.NewRepository(conn)

	finalizer, err := orders.NewFinalizer(orders.FinalizerParams{
		Repo:    repo,
		Carts:   cart.NewRepository(conn),
		Tx:      dbpkg.Wrap(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	require.NoError(t, err)
	return &env{conn: conn, finalizer: finalizer, repo: repo, metrics: checkoutMetrics, registry: registry, logg: logg, userID: uuid.New()}
}

// seedOrder puts two units at 100.00 in the cart and drafts the matching order (200 + 4 tax).
func (e *env) seedOrder(t *testing.T, orderNumber string) models.Order {
	t.Helper()
	product := dbtest.SeedProduct(t, e.conn, dbtest.WithPrice("100.00"), dbtest.WithStock(5))
	dbtest.SeedUserCartLine(t, e.conn, e.userID, product.ID, 2)
	return dbtest.SeedOrder(t, e.conn, dbtest.BillingOrder(e.userID, orderNumber, "200.00", "4.00"))
}

func (e *env) gateway(t *testing.T, stub *stubGateway) *SignedGateway {
	t.Helper()
	signer, err := NewSigner("gateway-secret")
	require.NoError(t, err)
	adapter, err := NewSignedGateway(SignedGatewayParams{
		Orders:   e.finalizer,
		Intents:  e.repo,
		Gateway:  stub,
		Signer:   signer,
		Currency: currency.INR,
		Metrics:  e.metrics,
		Logger:   e.logg,
	})
	require.NoError(t, err)
	return adapter
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.conn.Model(model).Count(&n).Error)
	return n
}

func TestSignerRoundTrip(t *testing.T) {
	signer, err := NewSigner("s3cret")
	require.NoError(t, err)

	sig := signer.Sign("order_1", "pay_1")
	require.Len(t, sig, 64)
	require.True(t, signer.Verify("order_1", "pay_1", sig))
	require.True(t, signer.Verify("order_1", "pay_1", " "+sig+" "))
	require.False(t, signer.Verify("order_1", "pay_2", sig))
	require.False(t, signer.Verify("order_1", "pay_1", sig[:63]+"0"))

	_, err = NewSigner(" ")
	require.Error(t, err)
}

func TestMinorUnits(t *testing.T) {
	require.Equal(t, int64(20400), MinorUnits(decimal.RequireFromString("204"), currency.INR))
	require.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99"), currency.USD))
	require.Equal(t, int64(500), MinorUnits(decimal.RequireFromString("500"), currency.JPY))
}

func TestRegistryResolve(t *testing.T) {
	e := newEnv(t)
	cod, err := NewCOD(e.finalizer, nil)
	require.NoError(t, err)

	reg, err := NewRegistry(cod, nil)
	require.NoError(t, err)
	adapter, err := reg.Resolve(enums.PaymentMethodCOD)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentMethodCOD, adapter.Method())

	_, err = reg.Resolve(enums.PaymentMethodSignedGateway)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewRegistry(cod, cod)
	require.Error(t, err)
}

func TestCODFinalizesPending(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "ORD-C1")
	at := time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)
	cod, err := NewCOD(e.finalizer, func() time.Time { return at })
	require.NoError(t, err)

	result, err := cod.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-C1"})
	require.NoError(t, err)
	require.Equal(t, "COD20260301093015ORD-C1", result.Payment.PaymentID)
	require.Equal(t, enums.PaymentStatusPending, result.Payment.Status)
	require.True(t, result.Payment.AmountPaid.Equal(decimal.RequireFromString("204")))

	_, err = cod.Finalize(context.Background(), Request{UserID: uuid.New(), OrderNumber: "ORD-C1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOnlineConfirmedRequiresCompletedStatus(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "ORD-O1")
	online, err := NewOnlineConfirmed(e.finalizer, nil, currency.INR, e.logg)
	require.NoError(t, err)

	_, err = online.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-O1", TransactionID: "txn_1", Status: "Failed"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))
	require.Zero(t, e.count(t, &models.Payment{}))

	result, err := online.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-O1", TransactionID: "txn_1", Status: "completed"})
	require.NoError(t, err)
	require.Equal(t, "txn_1", result.Payment.PaymentID)
	require.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)
	require.Equal(t, enums.PaymentMethodOnline, result.Order.PaymentMethod)
}

func TestOnlineConfirmedChecksProcessorWhenConfigured(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "ORD-O2")
	verifier := &stubVerifier{summary: &stripe.IntentSummary{ID: "pi_1", Status: "succeeded", Amount: 100, Currency: "INR", Succeeded: true}}
	online, err := NewOnlineConfirmed(e.finalizer, verifier, currency.INR, e.logg)
	require.NoError(t, err)
	req := Request{UserID: e.userID, OrderNumber: "ORD-O2", TransactionID: "pi_1", Status: "Completed"}

	_, err = online.Finalize(context.Background(), req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))

	verifier.summary = nil
	verifier.err = errors.New("stripe unavailable")
	_, err = online.Finalize(context.Background(), req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Zero(t, e.count(t, &models.Payment{}))

	verifier.err = fmt.Errorf("%w: pi_1", stripe.ErrIntentNotFound)
	_, err = online.Finalize(context.Background(), req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))

	verifier.err = nil
	verifier.summary = &stripe.IntentSummary{ID: "pi_1", Status: "succeeded", Amount: 20400, Currency: "INR", Succeeded: true}
	_, err = online.Finalize(context.Background(), req)
	require.NoError(t, err)
}

func TestSignedGatewayCreateIntent(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, "ORD-G1")
	stub := &stubGateway{intent: &razorpay.Intent{ID: "order_G1", Amount: 20400, Currency: "INR"}}
	adapter := e.gateway(t, stub)

	_, err := adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G1", Amount: decimal.RequireFromString("200")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	resp, err := adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G1", Amount: decimal.RequireFromString("204.00")})
	require.NoError(t, err)
	require.Equal(t, "order_G1", resp.IntentID)
	require.Equal(t, int64(20400), resp.Amount)
	require.Equal(t, "INR", resp.Currency)
	require.Equal(t, "rzp_test_key", resp.KeyID)
	require.Equal(t, int64(20400), stub.got.Amount)
	require.Equal(t, "ORD-G1", stub.got.Receipt)

	stored, err := e.repo.FindUnpaidOrder(context.Background(), e.userID, order.OrderNumber)
	require.NoError(t, err)
	require.Equal(t, "order_G1", *stored.GatewayIntentID)

	stub.err = errors.New("gateway down")
	_, err = adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G1", Amount: decimal.RequireFromString("204")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestSignedGatewayTamperedSignatureLeavesOrderUnpaid(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, "ORD-G2")
	adapter := e.gateway(t, &stubGateway{intent: &razorpay.Intent{ID: "order_G2"}})
	_, err := adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G2", Amount: decimal.RequireFromString("204")})
	require.NoError(t, err)

	good := adapter.signer.Sign("order_G2", "pay_G2")
	tampered := good[:len(good)-1] + "x"

	_, err = adapter.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-G2", IntentID: "order_G2", PaymentID: "pay_G2", Signature: tampered})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodePaymentVerification, typed.Code())
	require.Equal(t, 400, pkgerrors.MetadataFor(typed.Code()).HTTPStatus)

	var stored models.Order
	require.NoError(t, e.conn.Where("id = ?", order.ID).First(&stored).Error)
	require.False(t, stored.IsOrdered)
	require.Zero(t, e.count(t, &models.Payment{}))
	require.Zero(t, e.count(t, &models.OrderLine{}))
	require.Equal(t, int64(1), e.count(t, &models.CartLine{}))

	mfs, err := e.registry.Gather()
	require.NoError(t, err)
	var signatureFailures float64
	for _, mf := range mfs {
		if mf.GetName() == "payment_signature_failures_total" {
			signatureFailures = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, 1.0, signatureFailures)
}

func TestSignedGatewayRejectsForeignIntent(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "ORD-G3")
	adapter := e.gateway(t, &stubGateway{intent: &razorpay.Intent{ID: "order_G3"}})
	_, err := adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G3", Amount: decimal.RequireFromString("204")})
	require.NoError(t, err)

	// A valid signature for an intent that belongs to some other order.
	sig := adapter.signer.Sign("order_OTHER", "pay_G3")
	_, err = adapter.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-G3", IntentID: "order_OTHER", PaymentID: "pay_G3", Signature: sig})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))
}

func TestSignedGatewayCallbackFinalizes(t *testing.T) {
	e := newEnv(t)
	e.seedOrder(t, "ORD-G4")
	adapter := e.gateway(t, &stubGateway{intent: &razorpay.Intent{ID: "order_G4"}})
	_, err := adapter.CreateIntent(context.Background(), IntentRequest{UserID: e.userID, OrderNumber: "ORD-G4", Amount: decimal.RequireFromString("204")})
	require.NoError(t, err)

	_, err = adapter.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-UNKNOWN", IntentID: "order_G4", PaymentID: "pay_G4", Signature: "00"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	sig := adapter.signer.Sign("order_G4", "pay_G4")
	result, err := adapter.Finalize(context.Background(), Request{UserID: e.userID, OrderNumber: "ORD-G4", IntentID: "order_G4", PaymentID: "pay_G4", Signature: sig})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, result.Payment.Status)
	require.Equal(t, enums.PaymentMethodSignedGateway, result.Payment.Method)
	require.Zero(t, e.count(t, &models.CartLine{}))
}
