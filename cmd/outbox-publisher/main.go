package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/instance"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/migrate"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/registry"
	"github.com/angelmondragon/smartshop-backend/pkg/pubsub"
)

type options struct {
	dlqList   bool
	dlqLimit  int
	dlqReplay string
}

func main() {
	var opts options
	flag.BoolVar(&opts.dlqList, "dlq-list", false, "print dead-lettered events and exit")
	flag.IntVar(&opts.dlqLimit, "dlq-limit", 50, "max rows for -dlq-list")
	flag.StringVar(&opts.dlqReplay, "dlq-replay", "", "event id to move from the dead-letter table back to the outbox")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "outbox-publisher"
	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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
		"topic":       cfg.PubSub.OrdersTopic,
	})

	if err := run(ctx, cfg, logg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	switch {
	case opts.dlqReplay != "":
		return replayDLQ(ctx, logg, dlqRepo, opts.dlqReplay)
	case opts.dlqList:
		return listDLQ(ctx, dlqRepo, opts.dlqLimit)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "starting outbox publisher")
	return service.Run(ctx)
}

func listDLQ(ctx context.Context, repo *outbox.DLQRepository, limit int) error {
	entries, err := repo.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	for _, e := range entries {
		msg := ""
		if e.ErrorMessage != nil {
			msg = *e.ErrorMessage
		}
		fmt.Printf("%s\t%s\t%s\tattempts=%d\t%s\t%s\n",
			e.EventID, e.EventType, e.ErrorReason, e.AttemptCount, e.FailedAt.UTC().Format("2006-01-02T15:04:05Z"), msg)
	}
	return nil
}

func replayDLQ(ctx context.Context, logg *logger.Logger, repo *outbox.DLQRepository, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid -dlq-replay id: %w", err)
	}
	if err := repo.Replay(ctx, eventID); err != nil {
		return fmt.Errorf("replay %s: %w", eventID, err)
	}
	logg.Info(logg.WithField(ctx, "event_id", eventID.String()), "dead-lettered event requeued")
	return nil
}
