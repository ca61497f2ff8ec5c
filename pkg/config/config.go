package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Provider     ProviderConfig
	Payments     PaymentsConfig
	Payout       PayoutConfig
	Webhook      WebhookConfig
	RateLimit    RateLimitConfig
	Fees         FeesConfig
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
	if _, err := cfg.Fees.PlatformFeePercentDecimal(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOKOHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SOKOHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOKOHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOKOHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SOKOHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SOKOHUB_DB_DSN"`
	Driver string `envconfig:"SOKOHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOKOHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"SOKOHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOKOHUB_DB_USER"`
	LegacyPassword string `envconfig:"SOKOHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOKOHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOKOHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKOHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKOHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKOHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOKOHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SOKOHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOKOHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOKOHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKOHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKOHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOKOHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOKOHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOKOHUB_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOKOHUB_AUTO_MIGRATE" default:"false"`
}

// ProviderConfig describes the payment provider adapter endpoint.
type ProviderConfig struct {
	BaseURL string        `envconfig:"SOKOHUB_PROVIDER_BASE_URL"`
	APIKey  string        `envconfig:"SOKOHUB_PROVIDER_API_KEY"`
	Timeout time.Duration `envconfig:"SOKOHUB_PROVIDER_TIMEOUT" default:"15s"`
}

// PaymentsConfig tunes the reconciliation unit.
type PaymentsConfig struct {
	// ReconcileMaxAttempts bounds retries after a lock-wait conflict.
	ReconcileMaxAttempts int `envconfig:"SOKOHUB_PAYMENTS_RECONCILE_MAX_ATTEMPTS" default:"3"`
}

// PayoutConfig governs payout maturation. The window counts from delivery
// confirmation; the sweep runs over persisted rows so it survives restarts.
type PayoutConfig struct {
	MaturationWindow time.Duration `envconfig:"SOKOHUB_PAYOUT_MATURATION_WINDOW" default:"24h"`
}

type WebhookConfig struct {
	RetentionDays  int           `envconfig:"SOKOHUB_WEBHOOK_RETENTION_DAYS" default:"30"`
	FraudWindow    time.Duration `envconfig:"SOKOHUB_WEBHOOK_FRAUD_WINDOW" default:"1m"`
	FraudThreshold int64         `envconfig:"SOKOHUB_WEBHOOK_FRAUD_THRESHOLD" default:"60"`
	// KnownSources lists provider egress addresses; calls from elsewhere raise
	// an advisory alert without being blocked.
	KnownSources []string `envconfig:"SOKOHUB_WEBHOOK_KNOWN_SOURCES"`
}

// RateLimitConfig throttles the two abuse-prone surfaces: the open webhook
// endpoint per caller address, payment initiation per authenticated user.
type RateLimitConfig struct {
	WebhookWindow    time.Duration `envconfig:"SOKOHUB_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookIPLimit   int64         `envconfig:"SOKOHUB_RATE_LIMIT_WEBHOOK_IP_LIMIT" default:"120"`
	PaymentWindow    time.Duration `envconfig:"SOKOHUB_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentUserLimit int64         `envconfig:"SOKOHUB_RATE_LIMIT_PAYMENT_USER_LIMIT" default:"30"`
}

type FeesConfig struct {
	PlatformFeePercent string `envconfig:"SOKOHUB_PLATFORM_FEE_PERCENT" default:"9"`
}

// PlatformFeePercentDecimal parses the configured platform fee percentage.
func (f FeesConfig) PlatformFeePercentDecimal() (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(f.PlatformFeePercent))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid platform fee percent %q: %w", f.PlatformFeePercent, err)
	}
	if pct.IsNegative() {
		return decimal.Zero, fmt.Errorf("platform fee percent must not be negative")
	}
	return pct, nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SOKOHUB_CRON_INTERVAL" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
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
