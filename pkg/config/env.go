package config

const EnvPrefix = "CUISYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"

	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportGCP    = "gcp"

	DefaultSQLiteDSN = "cuisync.db"
)

const (
	EnvAppEnv         = "CUISYNC_APP_ENV"
	EnvPort           = "CUISYNC_APP_PORT"
	EnvLogLevel       = "CUISYNC_LOG_LEVEL"
	EnvDeviceID       = "CUISYNC_DEVICE_ID"
	EnvRestaurantID   = "CUISYNC_RESTAURANT_ID"
	EnvTaxRatePct     = "CUISYNC_TAX_RATE_PCT"
	EnvPaymentEpsilon = "CUISYNC_PAYMENT_EPSILON"
	EnvPersistDelay   = "CUISYNC_PERSIST_DEBOUNCE"
	EnvStorageDriver  = "CUISYNC_STORAGE_DRIVER"
	EnvDBDSN          = "CUISYNC_DB_DSN"
	EnvDBHost         = "CUISYNC_DB_HOST"
	EnvDBUser         = "CUISYNC_DB_USER"
	EnvDBName         = "CUISYNC_DB_NAME"
	EnvRedisURL       = "CUISYNC_REDIS_URL"
	EnvRedisAddr      = "CUISYNC_REDIS_ADDR"
	EnvGCPProjectID   = "CUISYNC_GCP_PROJECT_ID"
	EnvPubSubSyncTop  = "CUISYNC_PUBSUB_SYNC_TOPIC"
	EnvPubSubSyncSub  = "CUISYNC_PUBSUB_SYNC_SUBSCRIPTION"
	EnvSyncTransport  = "CUISYNC_SYNC_TRANSPORT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
