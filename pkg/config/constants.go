package config

const (
	EnvPrefix = "FOODBOWL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "FOODBOWL_APP_ENV"
	EnvPort         = "FOODBOWL_APP_PORT"
	EnvLogLevel     = "FOODBOWL_LOG_LEVEL"
	EnvDBDSN        = "FOODBOWL_DB_DSN"
	EnvDBHost       = "FOODBOWL_DB_HOST"
	EnvDBUser       = "FOODBOWL_DB_USER"
	EnvDBName       = "FOODBOWL_DB_NAME"
	EnvRedisURL     = "FOODBOWL_REDIS_URL"
	EnvJWTSecret    = "FOODBOWL_JWT_SECRET"
	EnvJWTIssuer    = "FOODBOWL_JWT_ISSUER"
	EnvCORSOrigins  = "FOODBOWL_CORS_ALLOWED_ORIGINS"
	EnvEarningsRate = "FOODBOWL_DELIVERY_EARNINGS_PER_DELIVERY_PAISE"
	EnvStatsTZ      = "FOODBOWL_DELIVERY_STATS_TIMEZONE"
	EnvRazorpayKey  = "FOODBOWL_RAZORPAY_KEY_ID"
	EnvRazorpaySec  = "FOODBOWL_RAZORPAY_KEY_SECRET"
	EnvPaymentTTL   = "FOODBOWL_PAYMENT_CREATED_TTL"
	EnvUseSQLite    = "FOODBOWL_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
