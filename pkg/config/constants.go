package config

const (
	EnvPrefix = "NORDSTIL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	IntentSourceBackend = "backend"
	IntentSourceStripe  = "stripe"
)

const (
	EnvAppEnv        = "NORDSTIL_APP_ENV"
	EnvPort          = "NORDSTIL_APP_PORT"
	EnvDBDSN         = "NORDSTIL_DB_DSN"
	EnvDBHost        = "NORDSTIL_DB_HOST"
	EnvDBUser        = "NORDSTIL_DB_USER"
	EnvDBName        = "NORDSTIL_DB_NAME"
	EnvRedisURL      = "NORDSTIL_REDIS_URL"
	EnvJWTSecret     = "NORDSTIL_JWT_SECRET"
	EnvJWTIssuer     = "NORDSTIL_JWT_ISSUER"
	EnvBackendURL    = "NORDSTIL_BACKEND_BASE_URL"
	EnvUseSQLite     = "NORDSTIL_USE_SQLITE"
	EnvTaxRate       = "NORDSTIL_CHECKOUT_TAX_RATE"
	EnvIntentSource  = "NORDSTIL_CHECKOUT_INTENT_SOURCE"
	EnvStripeAPIKey  = "NORDSTIL_STRIPE_API_KEY"
	EnvAllowedOrigin = "NORDSTIL_ALLOWED_ORIGINS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
