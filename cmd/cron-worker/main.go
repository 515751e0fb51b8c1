package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/angelmondragon/smartshop-backend/internal/cron"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/instance"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/migrate"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("jobs", "", "comma separated job names for -once (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"
	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		InstanceID:  instance.GetID(),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg, *once, splitJobs(*jobs)); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, jobNames []string) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL, instance.GetID())
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	registry, err := buildRegistry(cfg, logg, dbClient, metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if once {
		report, err := service.RunOnce(ctx, jobNames...)
		logg.Info(logg.WithFields(ctx, map[string]any{
			"cycle_id": report.ID,
			"skipped":  report.Skipped,
			"ran":      report.Ran,
		}), "single cron cycle finished")
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"interval": cfg.Cron.Interval.String(),
		"jobs":     registry.Names(),
	}), "starting cron worker")
	return service.Run(ctx)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, checkoutMetrics *metrics.CheckoutMetrics) (*cron.Registry, error) {
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	reconcile, err := cron.NewOrderReconcileJob(cron.OrderReconcileJobParams{
		Logger:  logg,
		DB:      dbClient,
		Orders:  ordersRepo,
		Outbox:  outboxService,
		Metrics: checkoutMetrics,
	})
	if err != nil {
		return nil, err
	}

	drafts, err := cron.NewDraftCleanupJob(cron.DraftCleanupJobParams{
		Logger:  logg,
		DB:      dbClient,
		Orders:  ordersRepo,
		Outbox:  outboxService,
		Metrics: checkoutMetrics,
		TTL:     cfg.Checkout.DraftTTL,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Repository:   outboxRepo,
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Outbox.RetentionDays,
		DLQRetention: cfg.Outbox.DLQRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(reconcile, drafts, retention)
}

func splitJobs(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
