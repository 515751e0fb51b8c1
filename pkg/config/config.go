package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Gateway      GatewayConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SMARTSHOP_APP_ENV" required:"true"`
	Port         string   `envconfig:"SMARTSHOP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SMARTSHOP_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"SMARTSHOP_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"SMARTSHOP_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SMARTSHOP_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SMARTSHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SMARTSHOP_DB_DSN"`
	Driver string `envconfig:"SMARTSHOP_DB_DRIVER" default:"postgres"`

	// Discrete connection parts, used when DSN is empty.
	Host     string `envconfig:"SMARTSHOP_DB_HOST"`
	Port     int    `envconfig:"SMARTSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"SMARTSHOP_DB_USER"`
	Password string `envconfig:"SMARTSHOP_DB_PASSWORD"`
	Name     string `envconfig:"SMARTSHOP_DB_NAME"`
	SSLMode  string `envconfig:"SMARTSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMARTSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMARTSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMARTSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMARTSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SMARTSHOP_DB_SLOW_QUERY" default:"200ms"`
	ConnectAttempts int           `envconfig:"SMARTSHOP_DB_CONNECT_ATTEMPTS" default:"5"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SMARTSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SMARTSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SMARTSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMARTSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMARTSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMARTSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMARTSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMARTSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMARTSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"SMARTSHOP_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"SMARTSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"SMARTSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"SMARTSHOP_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SMARTSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SMARTSHOP_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig drives totals, currency and the abandoned-draft window.
type CheckoutConfig struct {
	TaxPercent      string        `envconfig:"SMARTSHOP_CHECKOUT_TAX_PERCENT" default:"2"`
	Currency        string        `envconfig:"SMARTSHOP_CHECKOUT_CURRENCY" default:"INR"`
	DraftTTL        time.Duration `envconfig:"SMARTSHOP_CHECKOUT_DRAFT_TTL" default:"72h"`
	RateLimitWindow time.Duration `envconfig:"SMARTSHOP_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"SMARTSHOP_CHECKOUT_RATE_LIMIT" default:"10"`
}

// TaxRate returns the configured percentage as a fraction (2 -> 0.02).
func (c CheckoutConfig) TaxRate() decimal.Decimal {
	pct, err := decimal.NewFromString(strings.TrimSpace(c.TaxPercent))
	if err != nil {
		return decimal.Zero
	}
	return pct.Div(decimal.NewFromInt(100))
}

// CurrencyUnit returns the ISO 4217 unit for the storefront currency.
func (c CheckoutConfig) CurrencyUnit() currency.Unit {
	unit, err := currency.ParseISO(strings.TrimSpace(c.Currency))
	if err != nil {
		return currency.INR
	}
	return unit
}

func (c CheckoutConfig) validate() error {
	pct, err := decimal.NewFromString(strings.TrimSpace(c.TaxPercent))
	if err != nil {
		return fmt.Errorf("%s must be a number: %w", EnvCheckoutTaxPercent, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvCheckoutTaxPercent)
	}
	if _, err := currency.ParseISO(strings.TrimSpace(c.Currency)); err != nil {
		return fmt.Errorf("%s must be an ISO 4217 code: %w", EnvCheckoutCurrency, err)
	}
	return nil
}

// GatewayConfig holds the signed gateway credentials. KeySecret doubles as the HMAC secret.
type GatewayConfig struct {
	KeyID     string `envconfig:"SMARTSHOP_GATEWAY_KEY_ID"`
	KeySecret string `envconfig:"SMARTSHOP_GATEWAY_KEY_SECRET"`
}

// Enabled reports whether both gateway credentials are present.
func (g GatewayConfig) Enabled() bool {
	return strings.TrimSpace(g.KeyID) != "" && strings.TrimSpace(g.KeySecret) != ""
}

type StripeConfig struct {
	APIKey string `envconfig:"SMARTSHOP_STRIPE_API_KEY"`
	Env    string `envconfig:"SMARTSHOP_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"SMARTSHOP_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"SMARTSHOP_SENDGRID_FROM_EMAIL" default:"orders@smartshop.local"`
	FromName    string `envconfig:"SMARTSHOP_SENDGRID_FROM_NAME" default:"SmartShop"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SMARTSHOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"SMARTSHOP_PUBSUB_ORDERS_TOPIC" default:"smartshop-order-events"`
	// EmulatorHost points the client at a local emulator without credentials.
	EmulatorHost string `envconfig:"SMARTSHOP_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize        int `envconfig:"SMARTSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int `envconfig:"SMARTSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int `envconfig:"SMARTSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays    int `envconfig:"SMARTSHOP_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"SMARTSHOP_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"SMARTSHOP_CRON_INTERVAL" default:"15m"`
	LockTTL    time.Duration `envconfig:"SMARTSHOP_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"SMARTSHOP_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	missing := lo.Filter(requiredDBParts, func(env string, _ int) bool { return parts[env] == "" })

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
