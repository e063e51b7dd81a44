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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Backend      BackendConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"NORDSTIL_APP_ENV" required:"true"`
	Port           string   `envconfig:"NORDSTIL_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"NORDSTIL_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"NORDSTIL_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"NORDSTIL_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NORDSTIL_DB_DSN"`
	Driver string `envconfig:"NORDSTIL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"NORDSTIL_DB_HOST"`
	Port     int    `envconfig:"NORDSTIL_DB_PORT" default:"5432"`
	User     string `envconfig:"NORDSTIL_DB_USER"`
	Password string `envconfig:"NORDSTIL_DB_PASSWORD"`
	Name     string `envconfig:"NORDSTIL_DB_NAME"`
	SSLMode  string `envconfig:"NORDSTIL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NORDSTIL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NORDSTIL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NORDSTIL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NORDSTIL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NORDSTIL_REDIS_URL"`
	Address      string        `envconfig:"NORDSTIL_REDIS_ADDR"`
	Password     string        `envconfig:"NORDSTIL_REDIS_PASSWORD"`
	DB           int           `envconfig:"NORDSTIL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NORDSTIL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NORDSTIL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NORDSTIL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NORDSTIL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NORDSTIL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig validates the identity provider's access tokens.
type JWTConfig struct {
	Secret   string `envconfig:"NORDSTIL_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"NORDSTIL_JWT_ISSUER" required:"true"`
	Audience string `envconfig:"NORDSTIL_JWT_AUDIENCE"`
}

// BackendConfig points at the storefront REST API (orders, addresses, payment intents).
type BackendConfig struct {
	BaseURL          string        `envconfig:"NORDSTIL_BACKEND_BASE_URL" required:"true"`
	Timeout          time.Duration `envconfig:"NORDSTIL_BACKEND_TIMEOUT" default:"15s"`
	BreakerFailures  uint32        `envconfig:"NORDSTIL_BACKEND_BREAKER_FAILURES" default:"5"`
	BreakerOpenDelay time.Duration `envconfig:"NORDSTIL_BACKEND_BREAKER_OPEN_DELAY" default:"30s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"NORDSTIL_STRIPE_API_KEY"`
	Env    string `envconfig:"NORDSTIL_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a Stripe key was configured.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// CheckoutConfig carries the pricing rules and flow knobs of the checkout.
type CheckoutConfig struct {
	FreeShippingThreshold string        `envconfig:"NORDSTIL_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"100"`
	FlatShippingFee       string        `envconfig:"NORDSTIL_CHECKOUT_FLAT_SHIPPING_FEE" default:"9.99"`
	TaxRate               string        `envconfig:"NORDSTIL_CHECKOUT_TAX_RATE" default:"0.25"`
	Currency              string        `envconfig:"NORDSTIL_CHECKOUT_CURRENCY" default:"eur"`
	ShippingEstimate      string        `envconfig:"NORDSTIL_CHECKOUT_SHIPPING_ESTIMATE" default:"2-4 business days"`
	PayPalDemoDelay       time.Duration `envconfig:"NORDSTIL_CHECKOUT_PAYPAL_DEMO_DELAY" default:"2s"`
	SessionTTL            time.Duration `envconfig:"NORDSTIL_CHECKOUT_SESSION_TTL" default:"1h"`
	LockTTL               time.Duration `envconfig:"NORDSTIL_CHECKOUT_LOCK_TTL" default:"60s"`
	CartCacheTTL          time.Duration `envconfig:"NORDSTIL_CHECKOUT_CART_CACHE_TTL" default:"10m"`
	IntentSource          string        `envconfig:"NORDSTIL_CHECKOUT_INTENT_SOURCE" default:"backend"`
}

// Pricing parses the decimal pricing knobs.
func (c CheckoutConfig) Pricing() (threshold, fee, rate decimal.Decimal, err error) {
	if threshold, err = decimal.NewFromString(c.FreeShippingThreshold); err != nil {
		return threshold, fee, rate, fmt.Errorf("free shipping threshold: %w", err)
	}
	if fee, err = decimal.NewFromString(c.FlatShippingFee); err != nil {
		return threshold, fee, rate, fmt.Errorf("flat shipping fee: %w", err)
	}
	if rate, err = decimal.NewFromString(c.TaxRate); err != nil {
		return threshold, fee, rate, fmt.Errorf("tax rate: %w", err)
	}
	return threshold, fee, rate, nil
}

func (c *CheckoutConfig) validate() error {
	if _, _, _, err := c.Pricing(); err != nil {
		return err
	}
	c.IntentSource = strings.ToLower(strings.TrimSpace(c.IntentSource))
	switch c.IntentSource {
	case IntentSourceBackend, IntentSourceStripe:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvIntentSource, IntentSourceBackend, IntentSourceStripe)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NORDSTIL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NORDSTIL_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if sqlite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:nordstil.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
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
