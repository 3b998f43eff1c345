package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so
// the prefix only matters for fields without one.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageBackendMemory = "memory"
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendSQLite = "sqlite"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvAPIBaseURL = "STOREFRONT_API_BASE_URL"
	EnvAPITimeout = "STOREFRONT_API_TIMEOUT"

	EnvStorageBackend   = "STOREFRONT_STORAGE_BACKEND"
	EnvStorageFileDir   = "STOREFRONT_STORAGE_FILE_DIR"
	EnvStorageSQLiteDSN = "STOREFRONT_STORAGE_SQLITE_DSN"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvCheckoutShippingFee    = "STOREFRONT_CHECKOUT_SHIPPING_FEE"
	EnvCheckoutHandlingFee    = "STOREFRONT_CHECKOUT_HANDLING_FEE"
	EnvCheckoutPaymentTimeout = "STOREFRONT_CHECKOUT_PAYMENT_TIMEOUT"
	EnvCheckoutScriptTimeout  = "STOREFRONT_CHECKOUT_SCRIPT_TIMEOUT"

	EnvPaymentKeyID = "STOREFRONT_PAYMENT_KEY_ID"
)
