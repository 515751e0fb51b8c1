package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/internal/cart"
	dbpkg "github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smartshop-backend/pkg/errors"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/payloads"
)

type recordingNotifier struct {
	calls []*FinalizeResult
	err   error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, result *FinalizeResult) error {
	n.calls = append(n.calls, result)
	return n.err
}

type fixture struct {
	conn      *gorm.DB
	finalizer *Finalizer
	notifier  *recordingNotifier
	registry  *prometheus.Registry
	userID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, "orders")
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	notifier := &recordingNotifier{}

	finalizer, err := NewFinalizer(FinalizerParams{
		Repo:     NewRepository(conn),
		Carts:    cart.NewRepository(conn),
		Tx:       dbpkg.Wrap(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Notifier: notifier,
		Metrics:  metrics.NewCheckoutMetrics(registry),
		Logger:   logg,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	return &fixture{conn: conn, finalizer: finalizer, notifier: notifier, registry: registry, userID: uuid.New()}
}

// seedDraft prices the user's current cart into an unpaid order at a 2% tax rate.
func (f *fixture) seedDraft(t *testing.T, orderNumber string) models.Order {
	t.Helper()
	var lines []models.CartLine
	require.NoError(t, f.conn.Preload("Product").Where("user_id = ?", f.userID).Find(&lines).Error)
	totals := cart.ComputeTotals(lines, decimal.RequireFromString("0.02"))
	return dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, orderNumber, totals.Subtotal.String(), totals.Tax.String()))
}

func (f *fixture) codRequest(orderNumber, paymentID string) FinalizeRequest {
	return FinalizeRequest{
		UserID:      f.userID,
		OrderNumber: orderNumber,
		PaymentID:   paymentID,
		Method:      enums.PaymentMethodCOD,
		Status:      enums.PaymentStatusPending,
	}
}

func TestNewFinalizerValidatesDependencies(t *testing.T) {
	_, err := NewFinalizer(FinalizerParams{})
	require.Error(t, err)
}

func TestFinalizeCashOnDeliveryScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, dbtest.WithPrice("100.00"), dbtest.WithStock(5))
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 2)
	order := f.seedDraft(t, "ORD-1")
	require.True(t, order.Subtotal.Equal(decimal.RequireFromString("200")))
	require.True(t, order.Tax.Equal(decimal.RequireFromString("4")))
	require.True(t, order.OrderTotal.Equal(decimal.RequireFromString("204")))

	result, err := f.finalizer.Finalize(ctx, f.codRequest("ORD-1", "COD20260301120000ORD-1"))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, result.Payment.Status)
	require.True(t, result.Payment.AmountPaid.Equal(decimal.RequireFromString("204")))
	require.Len(t, result.Lines, 1)
	require.Equal(t, 2, result.Lines[0].Quantity)
	require.True(t, result.Lines[0].UnitPrice.Equal(decimal.RequireFromString("100")))

	var stored models.Order
	require.NoError(t, f.conn.Where("id = ?", order.ID).First(&stored).Error)
	require.True(t, stored.IsOrdered)
	require.NotNil(t, stored.PaymentID)
	require.Equal(t, result.Payment.ID, *stored.PaymentID)

	var refreshed models.Product
	require.NoError(t, f.conn.Where("id = ?", product.ID).First(&refreshed).Error)
	require.Equal(t, 3, refreshed.Stock)

	var cartCount int64
	require.NoError(t, f.conn.Model(&models.CartLine{}).Where("user_id = ?", f.userID).Count(&cartCount).Error)
	require.Zero(t, cartCount)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderPlaced, events[0].EventType)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var placed payloads.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &placed))
	require.Equal(t, "ORD-1", placed.OrderNumber)
	require.Len(t, placed.Lines, 1)

	require.Len(t, f.notifier.calls, 1)
	require.Equal(t, 1.0, counterValue(t, f.registry, "orders_finalized_total", "method", "cod"))
}

func TestFinalizeCreatesOneLinePerDistinctCartLine(t *testing.T) {
	f := newFixture(t)
	shirt := dbtest.SeedProduct(t, f.conn, dbtest.WithPrice("20.00"))
	mug := dbtest.SeedProduct(t, f.conn, dbtest.WithPrice("7.50"))
	red := dbtest.SeedVariation(t, f.conn, shirt.ID, enums.VariationColor, "red")
	blue := dbtest.SeedVariation(t, f.conn, shirt.ID, enums.VariationColor, "blue")

	redLine := dbtest.SeedUserCartLine(t, f.conn, f.userID, shirt.ID, 1)
	require.NoError(t, f.conn.Model(&redLine).Update("color_variation_id", red.ID).Error)
	blueLine := dbtest.SeedUserCartLine(t, f.conn, f.userID, shirt.ID, 2)
	require.NoError(t, f.conn.Model(&blueLine).Update("color_variation_id", blue.ID).Error)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, mug.ID, 4)
	f.seedDraft(t, "ORD-2")

	result, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-2", "COD-ORD-2"))
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)

	var stored []models.OrderLine
	require.NoError(t, f.conn.Where("order_id = ?", result.Order.ID).Find(&stored).Error)
	require.Len(t, stored, 3)
	colors := map[string]int{}
	for _, line := range stored {
		require.Equal(t, result.Payment.ID, line.PaymentID)
		if line.ColorValue != nil {
			colors[*line.ColorValue] = line.Quantity
		}
	}
	require.Equal(t, map[string]int{"red": 1, "blue": 2}, colors)

	var refreshed models.Product
	require.NoError(t, f.conn.Where("id = ?", shirt.ID).First(&refreshed).Error)
	require.Equal(t, 7, refreshed.Stock)
}

func TestFinalizeRollsBackWhenStockIsShort(t *testing.T) {
	f := newFixture(t)
	plenty := dbtest.SeedProduct(t, f.conn, dbtest.WithStock(10))
	scarce := dbtest.SeedProduct(t, f.conn, dbtest.WithStock(1))
	dbtest.SeedUserCartLine(t, f.conn, f.userID, plenty.ID, 1)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, scarce.ID, 2)
	order := f.seedDraft(t, "ORD-3")

	_, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-3", "COD-ORD-3"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var stored models.Order
	require.NoError(t, f.conn.Where("id = ?", order.ID).First(&stored).Error)
	require.False(t, stored.IsOrdered)

	var payments, lines, cartLines int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&payments).Error)
	require.NoError(t, f.conn.Model(&models.OrderLine{}).Count(&lines).Error)
	require.NoError(t, f.conn.Model(&models.CartLine{}).Count(&cartLines).Error)
	require.Zero(t, payments)
	require.Zero(t, lines)
	require.Equal(t, int64(2), cartLines)

	var first, second models.Product
	require.NoError(t, f.conn.Where("id = ?", plenty.ID).First(&first).Error)
	require.NoError(t, f.conn.Where("id = ?", scarce.ID).First(&second).Error)
	require.Equal(t, 10, first.Stock)
	require.Equal(t, 1, second.Stock)

	require.Equal(t, 1.0, counterValue(t, f.registry, "orders_finalize_failures_total", "code", string(pkgerrors.CodeStateConflict)))
}

func TestFinalizeLastUnitGoesToOneBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.conn, dbtest.WithStock(1))

	rival := *f
	rival.userID = uuid.New()
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	dbtest.SeedUserCartLine(t, f.conn, rival.userID, product.ID, 1)
	f.seedDraft(t, "ORD-LAST-A")
	rivalOrder := rival.seedDraft(t, "ORD-LAST-B")

	_, err := f.finalizer.Finalize(ctx, f.codRequest("ORD-LAST-A", "COD-LAST-A"))
	require.NoError(t, err)

	_, err = rival.finalizer.Finalize(ctx, rival.codRequest("ORD-LAST-B", "COD-LAST-B"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	var refreshed models.Product
	require.NoError(t, f.conn.Where("id = ?", product.ID).First(&refreshed).Error)
	require.Zero(t, refreshed.Stock)

	var stored models.Order
	require.NoError(t, f.conn.Where("id = ?", rivalOrder.ID).First(&stored).Error)
	require.False(t, stored.IsOrdered)

	var rivalLines int64
	require.NoError(t, f.conn.Model(&models.OrderLine{}).Where("user_id = ?", rival.userID).Count(&rivalLines).Error)
	require.Zero(t, rivalLines)
	var rivalCart int64
	require.NoError(t, f.conn.Model(&models.CartLine{}).Where("user_id = ?", rival.userID).Count(&rivalCart).Error)
	require.EqualValues(t, 1, rivalCart)
}

func TestFinalizeEmptyCartIsValidationError(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-4", "10.00", "0.20"))

	_, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-4", "COD-ORD-4"))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]any{"redirect": "/api/v1/products"}, typed.Details())
}

func TestFinalizeDetectsCartChangedSinceDraft(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-5")
	dbtest.SeedUserCartLine(t, f.conn, f.userID, dbtest.SeedProduct(t, f.conn).ID, 1)

	_, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-5", "COD-ORD-5"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestFinalizeSecondAttemptFindsNoUnpaidOrder(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-6")

	_, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-6", "COD-ORD-6-A"))
	require.NoError(t, err)

	_, err = f.finalizer.Finalize(context.Background(), f.codRequest("ORD-6", "COD-ORD-6-B"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var payments int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&payments).Error)
	require.Equal(t, int64(1), payments)
}

func TestMarkOrderPaidIsConditional(t *testing.T) {
	f := newFixture(t)
	order := dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-7", "1.00", "0.02"))
	repo := NewRepository(f.conn)

	first, err := repo.MarkOrderPaid(context.Background(), order.ID, uuid.New(), string(enums.PaymentMethodCOD))
	require.NoError(t, err)
	require.True(t, first)

	second, err := repo.MarkOrderPaid(context.Background(), order.ID, uuid.New(), string(enums.PaymentMethodCOD))
	require.NoError(t, err)
	require.False(t, second)
}

func TestFinalizeVerifyAbortsWithoutWrites(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-8")

	req := f.codRequest("ORD-8", "pay_x")
	req.Method = enums.PaymentMethodSignedGateway
	req.Status = enums.PaymentStatusCompleted
	req.Verify = func(*models.Order) error {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "verification failed")
	}
	_, err := f.finalizer.Finalize(context.Background(), req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))

	var payments int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&payments).Error)
	require.Zero(t, payments)
}

func TestFinalizeRejectsReusedPaymentID(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.conn)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-9")
	_, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-9", "txn_dup"))
	require.NoError(t, err)

	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-10")
	_, err = f.finalizer.Finalize(context.Background(), f.codRequest("ORD-10", "txn_dup"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	product := dbtest.SeedProduct(t, f.conn)
	dbtest.SeedUserCartLine(t, f.conn, f.userID, product.ID, 1)
	f.seedDraft(t, "ORD-11")

	result, err := f.finalizer.Finalize(context.Background(), f.codRequest("ORD-11", "COD-ORD-11"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 1.0, gaugeOrCounter(t, f.registry, "order_notification_failures_total"))
}

func TestFinalizeValidatesRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.finalizer.Finalize(context.Background(), FinalizeRequest{UserID: f.userID, OrderNumber: "x", PaymentID: "p", Method: "bogus", Status: enums.PaymentStatusPending})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.finalizer.Finalize(context.Background(), FinalizeRequest{OrderNumber: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric.GetLabel(), label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func gaugeOrCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name || len(mf.GetMetric()) == 0 {
			continue
		}
		metric := mf.GetMetric()[0]
		if metric.GetGauge() != nil {
			return metric.GetGauge().GetValue()
		}
		return metric.GetCounter().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
