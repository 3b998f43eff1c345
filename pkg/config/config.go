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
	App      AppConfig
	Backend  BackendConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Checkout CheckoutConfig
	Payment  PaymentConfig
	Session  SessionConfig
	CORS     CORSConfig

	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the storefront REST API.
type BackendConfig struct {
	BaseURL   string        `envconfig:"STOREFRONT_API_BASE_URL" required:"true"`
	Timeout   time.Duration `envconfig:"STOREFRONT_API_TIMEOUT" default:"15s"`
	UserAgent string        `envconfig:"STOREFRONT_API_USER_AGENT" default:"storefront-bff"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvAPIBaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvAPITimeout)
	}
	return nil
}

// StorageConfig selects where client-local state (guest cart, bearer token) lives.
type StorageConfig struct {
	Backend      string `envconfig:"STOREFRONT_STORAGE_BACKEND" default:"memory"`
	FileDir      string `envconfig:"STOREFRONT_STORAGE_FILE_DIR" default:".storefront"`
	SQLiteDSN    string `envconfig:"STOREFRONT_STORAGE_SQLITE_DSN" default:"file:storefront.db?cache=shared"`
	GuestCartKey string `envconfig:"STOREFRONT_GUEST_CART_KEY" default:"guest_cart"`
	AuthTokenKey string `envconfig:"STOREFRONT_AUTH_TOKEN_KEY" default:"auth_token"`
}

func (s StorageConfig) validate(redisCfg RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendMemory:
	case StorageBackendFile:
		if strings.TrimSpace(s.FileDir) == "" {
			return fmt.Errorf("%s is required for the file backend", EnvStorageFileDir)
		}
	case StorageBackendRedis:
		if redisCfg.URL == "" && redisCfg.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis backend", EnvRedisURL, EnvRedisAddr)
		}
	case StorageBackendSQLite:
		if strings.TrimSpace(s.SQLiteDSN) == "" {
			return fmt.Errorf("%s is required for the sqlite backend", EnvStorageSQLiteDSN)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, s.Backend)
	}
	if strings.TrimSpace(s.GuestCartKey) == "" || strings.TrimSpace(s.AuthTokenKey) == "" {
		return fmt.Errorf("storage keys must not be empty")
	}
	return nil
}

// NormalizedBackend returns the lower-cased backend name.
func (s StorageConfig) NormalizedBackend() string {
	return strings.ToLower(strings.TrimSpace(s.Backend))
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis connection settings were supplied.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// CheckoutConfig carries the fixed charges and the timeouts of the online payment path.
type CheckoutConfig struct {
	ShippingFee       string        `envconfig:"STOREFRONT_CHECKOUT_SHIPPING_FEE" default:"50"`
	HandlingFee       string        `envconfig:"STOREFRONT_CHECKOUT_HANDLING_FEE" default:"20"`
	Currency          string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"INR"`
	PaymentTimeout    time.Duration `envconfig:"STOREFRONT_CHECKOUT_PAYMENT_TIMEOUT" default:"15m"`
	ScriptLoadTimeout time.Duration `envconfig:"STOREFRONT_CHECKOUT_SCRIPT_TIMEOUT" default:"30s"`
	SessionTTL        time.Duration `envconfig:"STOREFRONT_CHECKOUT_SESSION_TTL" default:"2h"`
}

func (c CheckoutConfig) validate() error {
	if _, err := c.Fees(); err != nil {
		return err
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutPaymentTimeout)
	}
	if c.ScriptLoadTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutScriptTimeout)
	}
	return nil
}

// Fees parses the configured shipping and handling charges.
func (c CheckoutConfig) Fees() (Fees, error) {
	shipping, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return Fees{}, fmt.Errorf("parsing %s: %w", EnvCheckoutShippingFee, err)
	}
	handling, err := decimal.NewFromString(strings.TrimSpace(c.HandlingFee))
	if err != nil {
		return Fees{}, fmt.Errorf("parsing %s: %w", EnvCheckoutHandlingFee, err)
	}
	if shipping.IsNegative() || handling.IsNegative() {
		return Fees{}, fmt.Errorf("checkout fees must be non-negative")
	}
	return Fees{Shipping: shipping, Handling: handling}, nil
}

// Fees holds the parsed fixed charges.
type Fees struct {
	Shipping decimal.Decimal
	Handling decimal.Decimal
}

// PaymentConfig describes the hosted checkout widget the browser opens.
type PaymentConfig struct {
	KeyID        string `envconfig:"STOREFRONT_PAYMENT_KEY_ID"`
	ScriptURL    string `envconfig:"STOREFRONT_PAYMENT_SCRIPT_URL" default:"https://checkout.razorpay.com/v1/checkout.js"`
	MerchantName string `envconfig:"STOREFRONT_PAYMENT_MERCHANT_NAME" default:"Storefront"`
}

type SessionConfig struct {
	GuestCookieName string        `envconfig:"STOREFRONT_GUEST_COOKIE_NAME" default:"sf_guest"`
	CookieSecure    bool          `envconfig:"STOREFRONT_COOKIE_SECURE" default:"true"`
	GuestTTL        time.Duration `envconfig:"STOREFRONT_GUEST_TTL" default:"720h"`
	VisitorIdleTTL  time.Duration `envconfig:"STOREFRONT_VISITOR_IDLE_TTL" default:"30m"`
}

// AuthRateLimitConfig throttles login attempts per client IP and per email.
// Limits only apply when redis is configured.
type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"STOREFRONT_AUTH_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit    int           `envconfig:"STOREFRONT_AUTH_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"STOREFRONT_AUTH_LOGIN_EMAIL_LIMIT" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}
