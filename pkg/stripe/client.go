package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

const (
	envTest = "test"
	envLive = "live"

	maxNetworkRetries = 2
)

// ErrIntentNotFound means Stripe has no PaymentIntent with the given id, so
// the transaction reference the shopper sent cannot be trusted.
var ErrIntentNotFound = errors.New("payment intent not found")

type intentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// IntentSummary is what the online payment adapter compares against the
// order before accepting a client-confirmed payment.
type IntentSummary struct {
	ID        string
	Status    string
	Amount    int64
	Currency  string
	Succeeded bool
}

// Client looks up PaymentIntents with the storefront's secret key.
type Client struct {
	intents intentGetter
	env     string
}

// NewClient checks that the key matches the configured environment (a live
// key in test or the reverse is refused) and builds a Stripe API client that
// retries network failures and logs through logg.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("stripe api key is required")
	}
	env := cfg.Environment()
	if env != envTest && env != envLive {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", envTest, envLive, env)
	}
	if keyEnv := keyEnvironment(key); keyEnv != env {
		return nil, fmt.Errorf("stripe %s environment refuses a %s key", env, keyKind(keyEnv))
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
		LeveledLogger:     leveledLogger{ctx: ctx, logg: logg},
	}
	sc := client.New(key, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{intents: sc.PaymentIntents, env: env}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

// LookupPaymentIntent fetches intentID. A missing intent returns
// ErrIntentNotFound; other failures are transport or API errors.
func (c *Client) LookupPaymentIntent(ctx context.Context, intentID string) (*IntentSummary, error) {
	if c == nil || c.intents == nil {
		return nil, errors.New("stripe client not initialized")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, errors.New("payment intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := c.intents.Get(intentID, params)
	if err != nil {
		var apiErr *stripe.Error
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusNotFound || apiErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
		}
		return nil, fmt.Errorf("retrieve payment intent %s: %w", intentID, err)
	}

	return &IntentSummary{
		ID:        intent.ID,
		Status:    string(intent.Status),
		Amount:    intent.Amount,
		Currency:  strings.ToUpper(string(intent.Currency)),
		Succeeded: intent.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

// keyEnvironment reads the mode from a secret (sk_) or restricted (rk_) key
// prefix; anything else yields "".
func keyEnvironment(key string) string {
	for _, prefix := range []string{"sk_", "rk_"} {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(rest, envTest+"_"):
			return envTest
		case strings.HasPrefix(rest, envLive+"_"):
			return envLive
		}
	}
	return ""
}

func keyKind(env string) string {
	if env == "" {
		return "non-secret"
	}
	return env
}

// leveledLogger adapts stripe-go's logging hooks to the service logger.
// Request chatter stays at debug; retries surface as warnings.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Infof(format string, v ...any) {
	l.Debugf(format, v...)
}

func (l leveledLogger) Warnf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Errorf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Error(l.ctx, "stripe request failed", errors.New(fmt.Sprintf(format, v...)))
	}
}
