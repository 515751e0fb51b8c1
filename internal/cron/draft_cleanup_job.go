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

const (
	defaultDraftTTL   = 72 * time.Hour
	defaultDraftBatch = 200
)

type expiredDraftCounter interface {
	AddExpiredDrafts(count int)
}

// DraftCleanupJobParams configure the abandoned draft sweep.
type DraftCleanupJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Orders  orders.Repository
	Outbox  outboxEmitter
	Metrics expiredDraftCounter
	TTL     time.Duration
	Limit   int
}

// NewDraftCleanupJob builds the job that deletes unpaid drafts older than the TTL.
func NewDraftCleanupJob(params DraftCleanupJobParams) (Job, error) {
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
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDraftBatch
	}
	return &draftCleanupJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
	}, nil
}

type draftCleanupJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  orders.Repository
	outbox  outboxEmitter
	metrics expiredDraftCounter
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

func (j *draftCleanupJob) Name() string { return "order-draft-cleanup" }

func (j *draftCleanupJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.ttl)
	drafts, err := j.orders.FindExpiredDrafts(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("query expired drafts: %w", err)
	}

	deleted := 0
	for _, draft := range drafts {
		removed := false
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := j.orders.WithTx(tx).DeleteDraft(ctx, draft.ID)
			if err != nil || !ok {
				return err
			}
			removed = true
			return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDraftExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   draft.ID,
				Actor:         &outbox.ActorRef{UserID: draft.UserID, Source: "cron"},
				Version:       1,
				OccurredAt:    now,
				Data: payloads.OrderDraftExpiredEvent{
					OrderID:     draft.ID,
					OrderNumber: draft.OrderNumber,
					UserID:      draft.UserID,
					CreatedAt:   draft.CreatedAt,
				},
			})
		})
		if err != nil {
			return fmt.Errorf("delete draft %s: %w", draft.OrderNumber, err)
		}
		if removed {
			deleted++
		}
	}

	if j.metrics != nil {
		j.metrics.AddExpiredDrafts(deleted)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"deleted": deleted,
	})
	j.logg.Info(logCtx, "expired draft cleanup complete")
	return nil
}
