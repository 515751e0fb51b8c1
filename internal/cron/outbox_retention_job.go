package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

const (
	OutboxRetentionJobName = "outbox-retention"

	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultExhaustedAfter  = 5
)

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPurger
	// DLQ is optional; when nil dead-letter rows are kept indefinitely.
	DLQ              dlqPurger
	Retention        int
	DLQRetention     int
	ExhaustedAttempt int
}

// NewOutboxRetentionJob prunes settled order events. Published rows and rows
// that have used ExhaustedAttempt attempts go after Retention days; dead-letter
// entries go after DLQRetention days.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Repository,
		dlq:       params.DLQ,
		keep:      days(params.Retention, defaultOutboxRetention),
		keepDLQ:   days(params.DLQRetention, defaultDLQRetention),
		exhausted: params.ExhaustedAttempt,
		now:       time.Now,
	}
	if job.exhausted <= 0 {
		job.exhausted = defaultExhaustedAfter
	}
	return job, nil
}

func days(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * 24 * time.Hour
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    outboxPurger
	dlq       dlqPurger
	keep      time.Duration
	keepDLQ   time.Duration
	exhausted int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return OutboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.keep)
	dlqCutoff := now.Add(-j.keepDLQ)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.exhausted)
		if err != nil {
			return fmt.Errorf("purge outbox: %w", err)
		}
		events = n
		if j.dlq == nil {
			return nil
		}
		n, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff)
		if err != nil {
			return fmt.Errorf("purge dlq: %w", err)
		}
		deadLetters = n
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":   outboxCutoff,
		"dlq_cutoff":      dlqCutoff,
		"events_deleted":  events,
		"dlq_deleted":     deadLetters,
		"exhausted_after": j.exhausted,
	}), "outbox retention sweep complete")
	return nil
}
