package config

// EnvPrefix is empty because every field carries its fully qualified envconfig name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:devicetrade.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv   = "DEVICETRADE_APP_ENV"
	EnvPort     = "DEVICETRADE_APP_PORT"
	EnvLogLevel = "DEVICETRADE_LOG_LEVEL"

	EnvDBDSN    = "DEVICETRADE_DB_DSN"
	EnvDBDriver = "DEVICETRADE_DB_DRIVER"
	EnvDBHost   = "DEVICETRADE_DB_HOST"
	EnvDBUser   = "DEVICETRADE_DB_USER"
	EnvDBName   = "DEVICETRADE_DB_NAME"

	EnvRedisURL = "DEVICETRADE_REDIS_URL"

	EnvJWTSecret  = "DEVICETRADE_JWT_SECRET"
	EnvJWTIssuer  = "DEVICETRADE_JWT_ISSUER"
	EnvJWTExpMins = "DEVICETRADE_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "DEVICETRADE_USE_SQLITE"

	EnvPaymentGatewaySecret  = "DEVICETRADE_PAYMENT_GATEWAY_SECRET_KEY"
	EnvPaymentGatewayBaseURL = "DEVICETRADE_PAYMENT_GATEWAY_BASE_URL"

	EnvOrdersPendingTTL = "DEVICETRADE_ORDERS_PENDING_PAYMENT_TTL"

	EnvPubSubOrdersTopic = "DEVICETRADE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
