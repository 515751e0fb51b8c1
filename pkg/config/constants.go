package config

const EnvPrefix = "SMARTSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "SMARTSHOP_APP_ENV"
	EnvPort    = "SMARTSHOP_APP_PORT"
	EnvLogLvl  = "SMARTSHOP_LOG_LEVEL"
	EnvDBDSN   = "SMARTSHOP_DB_DSN"
	EnvDBHost  = "SMARTSHOP_DB_HOST"
	EnvDBUser  = "SMARTSHOP_DB_USER"
	EnvDBName  = "SMARTSHOP_DB_NAME"
	EnvDBPass  = "SMARTSHOP_DB_PASSWORD"
	EnvDBPort  = "SMARTSHOP_DB_PORT"
	EnvUseLite = "SMARTSHOP_USE_SQLITE"

	EnvRedisURL = "SMARTSHOP_REDIS_URL"

	EnvJWTSecret  = "SMARTSHOP_JWT_SECRET"
	EnvJWTIssuer  = "SMARTSHOP_JWT_ISSUER"
	EnvJWTExpMins = "SMARTSHOP_JWT_EXPIRATION_MINUTES"

	EnvCheckoutTaxPercent = "SMARTSHOP_CHECKOUT_TAX_PERCENT"
	EnvCheckoutCurrency   = "SMARTSHOP_CHECKOUT_CURRENCY"
	EnvCheckoutDraftTTL   = "SMARTSHOP_CHECKOUT_DRAFT_TTL"

	EnvGatewayKeyID     = "SMARTSHOP_GATEWAY_KEY_ID"
	EnvGatewayKeySecret = "SMARTSHOP_GATEWAY_KEY_SECRET"

	EnvPubSubOrdersTopic = "SMARTSHOP_PUBSUB_ORDERS_TOPIC"
)

var requiredDBParts = []string{EnvDBHost, EnvDBUser, EnvDBName}
