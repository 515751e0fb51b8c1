package stripe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
	"github.com/angelmondragon/smartshop-backend/pkg/logger"
)

type stubIntents struct {
	intent *stripe.PaymentIntent
	err    error
	gotID  string
}

func (s *stubIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.gotID = id
	if params == nil || params.Context == nil {
		return nil, errors.New("context not propagated")
	}
	return s.intent, s.err
}

func TestNewClientMatchesKeyToEnvironment(t *testing.T) {
	cases := map[string]struct {
		cfg     config.StripeConfig
		wantEnv string
	}{
		"missing key":         {cfg: config.StripeConfig{Env: "test"}},
		"test key":            {cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, wantEnv: "test"},
		"default env is test": {cfg: config.StripeConfig{APIKey: " sk_test_123 "}, wantEnv: "test"},
		"live key in test":    {cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "test"}},
		"restricted live key": {cfg: config.StripeConfig{APIKey: "rk_live_123", Env: "LIVE"}, wantEnv: "live"},
		"publishable key":     {cfg: config.StripeConfig{APIKey: "pk_test_123", Env: "test"}},
		"unknown env":         {cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantEnv == "" {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantEnv, c.Environment())
		})
	}
}

func TestLookupPaymentIntentSummarizes(t *testing.T) {
	stub := &stubIntents{intent: &stripe.PaymentIntent{
		ID:       "pi_123",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   20400,
		Currency: stripe.CurrencyINR,
	}}
	c := &Client{intents: stub, env: envTest}

	summary, err := c.LookupPaymentIntent(context.Background(), " pi_123 ")
	require.NoError(t, err)
	require.Equal(t, "pi_123", stub.gotID)
	require.Equal(t, &IntentSummary{ID: "pi_123", Status: "succeeded", Amount: 20400, Currency: "INR", Succeeded: true}, summary)
}

func TestLookupPaymentIntentNotSucceeded(t *testing.T) {
	c := &Client{intents: &stubIntents{intent: &stripe.PaymentIntent{ID: "pi_9", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}}}
	summary, err := c.LookupPaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	require.False(t, summary.Succeeded)
}

func TestLookupPaymentIntentErrors(t *testing.T) {
	missing := &stripe.Error{HTTPStatusCode: http.StatusNotFound, Code: stripe.ErrorCodeResourceMissing, Msg: "No such payment_intent"}
	c := &Client{intents: &stubIntents{err: missing}}
	_, err := c.LookupPaymentIntent(context.Background(), "pi_missing")
	require.ErrorIs(t, err, ErrIntentNotFound)

	c = &Client{intents: &stubIntents{err: &stripe.Error{HTTPStatusCode: http.StatusBadGateway, Msg: "upstream"}}}
	_, err = c.LookupPaymentIntent(context.Background(), "pi_1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrIntentNotFound)

	_, err = c.LookupPaymentIntent(context.Background(), "  ")
	require.Error(t, err)

	var nilClient *Client
	_, err = nilClient.LookupPaymentIntent(context.Background(), "pi_1")
	require.Error(t, err)
	require.Empty(t, nilClient.Environment())
}

func TestKeyEnvironment(t *testing.T) {
	require.Equal(t, envTest, keyEnvironment("sk_test_abc"))
	require.Equal(t, envLive, keyEnvironment("rk_live_abc"))
	require.Empty(t, keyEnvironment("pk_live_abc"))
	require.Empty(t, keyEnvironment("sk_prod_abc"))
}

func TestLeveledLoggerRoutesLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	l := leveledLogger{ctx: context.Background(), logg: logger.New(logger.Options{ServiceName: "test", Output: buf})}

	l.Debugf("Requesting %s", "GET /v1/payment_intents/pi_1")
	l.Infof("Response %d", 200)
	require.Zero(t, buf.Len())

	l.Warnf("Retrying after %s", "500")
	require.Contains(t, buf.String(), `"level":"warn"`)

	leveledLogger{}.Errorf("ignored %d", 1)
}
