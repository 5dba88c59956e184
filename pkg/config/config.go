package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Delivery     DeliveryConfig
	Razorpay     RazorpayConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if _, err := cfg.Delivery.Location(); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvStatsTZ, err)
	}
	if cfg.Delivery.EarningsPerDeliveryPaise < 0 {
		return nil, fmt.Errorf("%s must not be negative", EnvEarningsRate)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODBOWL_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODBOWL_APP_PORT" default:"5001"`
	LogLevel     string `envconfig:"FOODBOWL_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FOODBOWL_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FOODBOWL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"FOODBOWL_DB_DSN"`
	SQLitePath string `envconfig:"FOODBOWL_DB_SQLITE_PATH" default:"foodbowl.db"`

	LegacyHost     string `envconfig:"FOODBOWL_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODBOWL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODBOWL_DB_USER"`
	LegacyPassword string `envconfig:"FOODBOWL_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODBOWL_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODBOWL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODBOWL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODBOWL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODBOWL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODBOWL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FOODBOWL_DB_SLOW_QUERY" default:"250ms"`
	ConnectRetries  uint64        `envconfig:"FOODBOWL_DB_CONNECT_RETRIES" default:"5"`
}

type RedisConfig struct {
	URL            string        `envconfig:"FOODBOWL_REDIS_URL" required:"true"`
	Password       string        `envconfig:"FOODBOWL_REDIS_PASSWORD"`
	PoolSize       int           `envconfig:"FOODBOWL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"FOODBOWL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"FOODBOWL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"FOODBOWL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"FOODBOWL_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"FOODBOWL_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FOODBOWL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODBOWL_JWT_ISSUER" default:"foodbowl"`
	ExpirationMinutes int    `envconfig:"FOODBOWL_JWT_EXPIRATION_MINUTES" default:"10080"`
	CookieName        string `envconfig:"FOODBOWL_JWT_COOKIE_NAME" default:"token"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FOODBOWL_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:5174,https://food-bowl.vercel.app"`
}

type DeliveryConfig struct {
	EarningsPerDeliveryPaise int64         `envconfig:"FOODBOWL_DELIVERY_EARNINGS_PER_DELIVERY_PAISE" default:"1000"`
	StatsTimezone            string        `envconfig:"FOODBOWL_DELIVERY_STATS_TIMEZONE" default:"Asia/Kolkata"`
	AcceptMaxRetries         uint64        `envconfig:"FOODBOWL_DELIVERY_ACCEPT_MAX_RETRIES" default:"3"`
	AcceptRetryBase          time.Duration `envconfig:"FOODBOWL_DELIVERY_ACCEPT_RETRY_BASE" default:"25ms"`
}

// Location resolves the zone used to compute "today" for delivery stats.
func (d DeliveryConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(d.StatsTimezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type RazorpayConfig struct {
	KeyID     string        `envconfig:"FOODBOWL_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"FOODBOWL_RAZORPAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"FOODBOWL_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Currency  string        `envconfig:"FOODBOWL_RAZORPAY_CURRENCY" default:"INR"`
	Timeout   time.Duration `envconfig:"FOODBOWL_RAZORPAY_TIMEOUT" default:"10s"`
}

// Enabled reports whether gateway credentials are configured.
func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type PaymentsConfig struct {
	CreatedTTL time.Duration `envconfig:"FOODBOWL_PAYMENT_CREATED_TTL" default:"30m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FOODBOWL_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"FOODBOWL_CRON_LOCK_TTL" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FOODBOWL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FOODBOWL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FOODBOWL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Keep           time.Duration `envconfig:"FOODBOWL_OUTBOX_KEEP" default:"168h"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"FOODBOWL_GCP_PROJECT_ID"`
	OrdersTopic string `envconfig:"FOODBOWL_PUBSUB_ORDERS_TOPIC" default:"foodbowl-order-events"`
	// Endpoint overrides the Pub/Sub API host, e.g. a regional endpoint.
	Endpoint string `envconfig:"FOODBOWL_PUBSUB_ENDPOINT"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FOODBOWL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FOODBOWL_AUTO_MIGRATE" default:"false"`
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
