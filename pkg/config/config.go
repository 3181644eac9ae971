package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	PaymentGateway PaymentGatewayConfig
	Orders         OrdersConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
	Cron           CronConfig
	RateLimit      RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DEVICETRADE_APP_ENV" required:"true"`
	Port         string `envconfig:"DEVICETRADE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEVICETRADE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEVICETRADE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"DEVICETRADE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DEVICETRADE_SERVICE_KIND" default:"api"`
	// MetricsAddr is the worker /metrics listener; the API serves metrics on its router.
	MetricsAddr string `envconfig:"DEVICETRADE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"DEVICETRADE_DB_DSN"`
	Driver string `envconfig:"DEVICETRADE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DEVICETRADE_DB_HOST"`
	LegacyPort     int    `envconfig:"DEVICETRADE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DEVICETRADE_DB_USER"`
	LegacyPassword string `envconfig:"DEVICETRADE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DEVICETRADE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DEVICETRADE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEVICETRADE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEVICETRADE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEVICETRADE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEVICETRADE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"DEVICETRADE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DEVICETRADE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEVICETRADE_REDIS_ADDR"`
	Password     string        `envconfig:"DEVICETRADE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEVICETRADE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEVICETRADE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEVICETRADE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEVICETRADE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEVICETRADE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEVICETRADE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DEVICETRADE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DEVICETRADE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DEVICETRADE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEVICETRADE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEVICETRADE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"DEVICETRADE_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
	ConfirmLockTTL time.Duration `envconfig:"DEVICETRADE_EVENTING_CONFIRM_LOCK_TTL" default:"30s"`
}

type PaymentGatewayConfig struct {
	BaseURL   string        `envconfig:"DEVICETRADE_PAYMENT_GATEWAY_BASE_URL" default:"https://api.tosspayments.com"`
	SecretKey string        `envconfig:"DEVICETRADE_PAYMENT_GATEWAY_SECRET_KEY" required:"true"`
	Timeout   time.Duration `envconfig:"DEVICETRADE_PAYMENT_GATEWAY_TIMEOUT" default:"10s"`
}

type OrdersConfig struct {
	PendingPaymentTTL time.Duration `envconfig:"DEVICETRADE_ORDERS_PENDING_PAYMENT_TTL" default:"30m"`
	NumberPrefix      string        `envconfig:"DEVICETRADE_ORDERS_NUMBER_PREFIX"`
	ExpireBatchSize   int           `envconfig:"DEVICETRADE_ORDERS_EXPIRE_BATCH_SIZE" default:"100"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DEVICETRADE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DEVICETRADE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DEVICETRADE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"DEVICETRADE_PUBSUB_ORDERS_TOPIC" default:"dt-order-events"`
	SellRequestsTopic string `envconfig:"DEVICETRADE_PUBSUB_SELL_REQUESTS_TOPIC" default:"dt-sell-request-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"DEVICETRADE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"DEVICETRADE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"DEVICETRADE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"DEVICETRADE_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"DEVICETRADE_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"DEVICETRADE_CRON_INTERVAL" default:"1m"`
	LockTTL    time.Duration `envconfig:"DEVICETRADE_CRON_LOCK_TTL" default:"5m"`
	JobTimeout time.Duration `envconfig:"DEVICETRADE_CRON_JOB_TIMEOUT" default:"2m"`
}

// RateLimitConfig bounds the order placement and payment confirmation surfaces.
// A zero window or zero limits disables the policy.
type RateLimitConfig struct {
	OrderWindow       time.Duration `envconfig:"DEVICETRADE_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderActorLimit   int           `envconfig:"DEVICETRADE_RATE_LIMIT_ORDER_ACTOR_LIMIT" default:"10"`
	OrderIPLimit      int           `envconfig:"DEVICETRADE_RATE_LIMIT_ORDER_IP_LIMIT" default:"30"`
	ConfirmWindow     time.Duration `envconfig:"DEVICETRADE_RATE_LIMIT_CONFIRM_WINDOW" default:"1m"`
	ConfirmActorLimit int           `envconfig:"DEVICETRADE_RATE_LIMIT_CONFIRM_ACTOR_LIMIT" default:"10"`
	ConfirmIPLimit    int           `envconfig:"DEVICETRADE_RATE_LIMIT_CONFIRM_IP_LIMIT" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
