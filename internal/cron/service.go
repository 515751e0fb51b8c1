package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
)

const (
	defaultInterval   = 15 * time.Minute
	defaultJobTimeout = 10 * time.Minute
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the registered maintenance jobs once per interval on whichever
// worker instance wins the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// CycleReport summarises one pass over the selected jobs.
type CycleReport struct {
	ID      string
	Skipped bool
	Ran     []string
	Failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   lo.Ternary(params.Interval > 0, params.Interval, defaultInterval),
		jobTimeout: lo.Ternary(params.JobTimeout > 0, params.JobTimeout, defaultJobTimeout),
		now:        time.Now,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx, s.registry.Jobs())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx, s.registry.Jobs())
		}
	}
}

// RunOnce executes a single cycle limited to the named jobs (all when empty).
// It returns an error when any selected job failed.
func (s *Service) RunOnce(ctx context.Context, names ...string) (CycleReport, error) {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return CycleReport{}, err
	}
	report := s.cycle(ctx, jobs)
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("cron jobs failed: %v", report.Failed)
	}
	return report, nil
}

func (s *Service) cycle(ctx context.Context, jobs []Job) CycleReport {
	report := CycleReport{ID: ulid.Make().String()}
	ctx = s.logg.WithField(ctx, "cycle_id", report.ID)

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron lock acquire failed", err)
		report.Skipped = true
		return report
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		s.metrics.IncSkipped()
		report.Skipped = true
		return report
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			if errors.Is(err, ErrLockLost) {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cron lock expired during cycle")
				return
			}
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		report.Ran = append(report.Ran, job.Name())
		if !s.runJob(ctx, job) {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_ran":    len(report.Ran),
		"jobs_failed": report.Failed,
	}), "cron cycle complete")
	return report
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := s.now()
	err := runGuarded(runCtx, job)
	finished := s.now()
	elapsed := finished.Sub(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())

	switch {
	case err == nil:
		s.metrics.ObserveRun(job.Name(), metrics.OutcomeSuccess, elapsed, finished)
		s.logg.Info(jobCtx, "cron job completed")
		return true
	case errors.Is(err, context.DeadlineExceeded) && runCtx.Err() != nil:
		s.metrics.ObserveRun(job.Name(), metrics.OutcomeTimeout, elapsed, finished)
		s.logg.Error(jobCtx, "cron job timed out", err)
	default:
		s.metrics.ObserveRun(job.Name(), metrics.OutcomeFailure, elapsed, finished)
		s.logg.Error(jobCtx, "cron job failed", err)
	}
	return false
}

// runGuarded keeps one panicking job from taking the worker down.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cron job %s panicked: %v", job.Name(), rec)
		}
	}()
	return job.Run(ctx)
}
