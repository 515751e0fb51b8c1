package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/enums"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/payloads"
)

const defaultReconcileBatch = 500

type inconsistentOrderFinder interface {
	FindInconsistentOrders(ctx context.Context, limit int) ([]orders.InconsistentOrder, error)
}

type inconsistencyGauge interface {
	SetInconsistentOrders(count int)
}

// OrderReconcileJobParams configure the paid-order consistency check.
type OrderReconcileJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Orders  inconsistentOrderFinder
	Outbox  outboxEmitter
	Metrics inconsistencyGauge
	Limit   int
}

// NewOrderReconcileJob builds the job that flags paid orders missing their
// payment row or order lines.
func NewOrderReconcileJob(params OrderReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileBatch
	}
	return &orderReconcileJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		limit:   limit,
		now:     time.Now,
	}, nil
}

type orderReconcileJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  inconsistentOrderFinder
	outbox  outboxEmitter
	metrics inconsistencyGauge
	limit   int
	now     func() time.Time
}

func (j *orderReconcileJob) Name() string { return "order-reconcile" }

func (j *orderReconcileJob) Run(ctx context.Context) error {
	found, err := j.orders.FindInconsistentOrders(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("query inconsistent orders: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetInconsistentOrders(len(found))
	}

	detectedAt := j.now().UTC()
	for _, order := range found {
		logCtx := j.logg.WithOrderNumber(ctx, order.OrderNumber)
		logCtx = j.logg.WithFields(logCtx, map[string]any{
			"order_id":        order.ID.String(),
			"user_id":         order.UserID.String(),
			"missing_payment": order.MissingPayment,
			"line_count":      order.LineCount,
		})
		j.logg.Warn(logCtx, "paid order is inconsistent")

		if err := j.flag(ctx, order, detectedAt); err != nil {
			return fmt.Errorf("flag order %s: %w", order.OrderNumber, err)
		}
	}

	logCtx := j.logg.WithField(ctx, "count", len(found))
	j.logg.Info(logCtx, "order reconciliation complete")
	return nil
}

func (j *orderReconcileJob) flag(ctx context.Context, order orders.InconsistentOrder, detectedAt time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderInconsistent,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "cron"},
			Version:       1,
			OccurredAt:    detectedAt,
			Data: payloads.OrderInconsistentEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				MissingPayment: order.MissingPayment,
				LineCount:      order.LineCount,
				DetectedAt:     detectedAt,
			},
		})
	})
}
