package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/smartshop-backend/api/controllers"
	"github.com/angelmondragon/smartshop-backend/api/routes"
	"github.com/angelmondragon/smartshop-backend/internal/cart"
	"github.com/angelmondragon/smartshop-backend/internal/catalog"
	"github.com/angelmondragon/smartshop-backend/internal/checkout"
	"github.com/angelmondragon/smartshop-backend/internal/notifications"
	"github.com/angelmondragon/smartshop-backend/internal/orders"
	"github.com/angelmondragon/smartshop-backend/internal/payments"
	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/instance"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
	"github.com/angelmondragon/smartshop-backend/pkg/metrics"
	"github.com/angelmondragon/smartshop-backend/pkg/migrate"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox"
	"github.com/angelmondragon/smartshop-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/smartshop-backend/pkg/razorpay"
	"github.com/angelmondragon/smartshop-backend/pkg/redis"
	"github.com/angelmondragon/smartshop-backend/pkg/sendgrid"
	"github.com/angelmondragon/smartshop-backend/pkg/stripe"
)

const (
	shutdownTimeout   = 15 * time.Second
	notificationDedup = 7 * 24 * time.Hour
)

type mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

type paymentIntentLookup interface {
	LookupPaymentIntent(ctx context.Context, intentID string) (*stripe.IntentSummary, error)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		InstanceID:  instance.GetID(),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	currencyUnit := cfg.Checkout.CurrencyUnit()

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		return err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, dbClient, catalogService, cfg.Checkout.TaxRate())
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(ctx, cfg, logg, redisClient)
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	finalizer, err := orders.NewFinalizer(orders.FinalizerParams{
		Repo:     ordersRepo,
		Carts:    cartRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Notifier: notifier,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	cod, err := payments.NewCOD(finalizer, nil)
	if err != nil {
		return err
	}

	var verifier paymentIntentLookup
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		verifier = stripeClient
	} else {
		logg.Warn(ctx, "stripe api key not set, online payments are trusted as reported by the client")
	}
	online, err := payments.NewOnlineConfirmed(finalizer, verifier, currencyUnit, logg)
	if err != nil {
		return err
	}

	adapters := []payments.Adapter{cod, online}
	var gatewayIntents controllers.GatewayIntents
	if cfg.Gateway.Enabled() {
		gatewayClient, err := razorpay.NewClient(ctx, cfg.Gateway, logg)
		if err != nil {
			return err
		}
		signer, err := payments.NewSigner(cfg.Gateway.KeySecret)
		if err != nil {
			return err
		}
		gateway, err := payments.NewSignedGateway(payments.SignedGatewayParams{
			Orders:   finalizer,
			Intents:  ordersRepo,
			Gateway:  gatewayClient,
			Signer:   signer,
			Currency: currencyUnit,
			Metrics:  checkoutMetrics,
			Logger:   logg,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, gateway)
		gatewayIntents = gateway
	} else {
		logg.Warn(ctx, "signed gateway credentials not set, gateway payments disabled")
	}

	paymentRegistry, err := payments.NewRegistry(adapters...)
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:    cartService,
		Orders:   ordersRepo,
		Adapters: paymentRegistry,
		Currency: currencyUnit.String(),
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	orderQueries, err := orders.NewQueryService(ordersRepo, currencyUnit.String())
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"currency": currencyUnit.String(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Gatherer: registry,
			Catalog:  catalogService,
			Cart:     cartService,
			Checkout: checkoutService,
			Payments: paymentRegistry,
			Gateway:  gatewayIntents,
			Orders:   orderQueries,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildNotifier wires the order confirmation email. Without a SendGrid key the
// messages are only logged.
func buildNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) (orders.Notifier, error) {
	var mail mailer = notifications.LogMailer{Logger: logg}
	if strings.TrimSpace(cfg.Sendgrid.APIKey) != "" {
		client, err := sendgrid.NewClient(ctx, cfg.Sendgrid, logg)
		if err != nil {
			return nil, err
		}
		mail = client
	} else {
		logg.Warn(ctx, "sendgrid api key not set, order emails will be logged only")
	}

	dedupe, err := idempotency.NewGuard(redisClient, notificationDedup)
	if err != nil {
		return nil, err
	}
	dispatcher, err := notifications.NewDispatcher(mail, dedupe, cfg.Checkout.Currency, logg)
	if err != nil {
		return nil, err
	}
	return dispatcher, nil
}
