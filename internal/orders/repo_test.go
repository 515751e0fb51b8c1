package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smartshop-backend/pkg/db/models"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
)

func TestFindInconsistentOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.conn)

	healthy := finalizedOrder(t, f, "ORD-OK", "COD-OK")
	require.NotNil(t, healthy)

	payment := models.Payment{
		PaymentID:  "COD-NOLINES",
		UserID:     f.userID,
		Method:     enums.PaymentMethodCOD,
		AmountPaid: decimal.RequireFromString("1.02"),
		Status:     enums.PaymentStatusPending,
	}
	require.NoError(t, f.conn.Create(&payment).Error)
	noLines := dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-NOLINES", "1.00", "0.02"))
	_, err := repo.MarkOrderPaid(ctx, noLines.ID, payment.ID, string(enums.PaymentMethodCOD))
	require.NoError(t, err)

	orphan := dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-ORPHAN", "1.00", "0.02"))
	_, err = repo.MarkOrderPaid(ctx, orphan.ID, uuid.New(), string(enums.PaymentMethodCOD))
	require.NoError(t, err)

	found, err := repo.FindInconsistentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)

	byNumber := map[string]InconsistentOrder{}
	for _, row := range found {
		byNumber[row.OrderNumber] = row
	}
	require.False(t, byNumber["ORD-NOLINES"].MissingPayment)
	require.Zero(t, byNumber["ORD-NOLINES"].LineCount)
	require.True(t, byNumber["ORD-ORPHAN"].MissingPayment)
	require.Equal(t, f.userID, byNumber["ORD-ORPHAN"].UserID)
}

func TestExpiredDraftsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.conn)

	old := dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-OLD", "1.00", "0.02"))
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().Add(-96*time.Hour)).Error)
	dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-FRESH", "1.00", "0.02"))

	drafts, err := repo.FindExpiredDrafts(ctx, time.Now().Add(-72*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "ORD-OLD", drafts[0].OrderNumber)

	deleted, err := repo.DeleteDraft(ctx, old.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	again, err := repo.DeleteDraft(ctx, old.ID)
	require.NoError(t, err)
	require.False(t, again)
}

func TestSetGatewayIntentOnlyTouchesUnpaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewRepository(f.conn)
	order := dbtest.SeedOrder(t, f.conn, dbtest.BillingOrder(f.userID, "ORD-INTENT", "1.00", "0.02"))

	require.NoError(t, repo.SetGatewayIntent(ctx, order.ID, "order_abc"))
	stored, err := repo.FindUnpaidOrder(ctx, f.userID, "ORD-INTENT")
	require.NoError(t, err)
	require.NotNil(t, stored.GatewayIntentID)
	require.Equal(t, "order_abc", *stored.GatewayIntentID)

	missing, err := repo.FindUnpaidOrder(ctx, uuid.New(), "ORD-INTENT")
	require.NoError(t, err)
	require.Nil(t, missing)
}
