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
	App     AppConfig
	Device  DeviceConfig
	Engine  EngineConfig
	Storage StorageConfig
	DB      DBConfig
	Redis   RedisConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Sync    SyncConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sync.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(cfg.Storage.Driver); err != nil {
		return nil, err
	}
	if err := cfg.validateDependencies(); err != nil {
		return nil, err
	}
	if _, err := cfg.Engine.TaxRate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Engine.Epsilon(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CUISYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"CUISYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CUISYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CUISYNC_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CUISYNC_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ConsoleLogs reports whether logs should be human readable instead of JSON.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

// DeviceConfig identifies this process among the restaurant's devices.
type DeviceConfig struct {
	ID         string `envconfig:"CUISYNC_DEVICE_ID"`
	Restaurant string `envconfig:"CUISYNC_RESTAURANT_ID" default:"default"`
}

type EngineConfig struct {
	TaxRatePct      string        `envconfig:"CUISYNC_TAX_RATE_PCT" default:"0"`
	PaymentEpsilon  string        `envconfig:"CUISYNC_PAYMENT_EPSILON" default:"0.01"`
	PersistDebounce time.Duration `envconfig:"CUISYNC_PERSIST_DEBOUNCE" default:"300ms"`
}

// TaxRate returns the configured tax rate percentage as a decimal.
func (e EngineConfig) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(e.TaxRatePct))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvTaxRatePct, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be non-negative", EnvTaxRatePct)
	}
	return rate, nil
}

// Epsilon returns the rounding tolerance used when comparing payments to the balance.
func (e EngineConfig) Epsilon() (decimal.Decimal, error) {
	eps, err := decimal.NewFromString(strings.TrimSpace(e.PaymentEpsilon))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvPaymentEpsilon, err)
	}
	if eps.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be non-negative", EnvPaymentEpsilon)
	}
	return eps, nil
}

type StorageConfig struct {
	Driver string `envconfig:"CUISYNC_STORAGE_DRIVER" default:"sqlite"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(s.Driver) {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageRedis:
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
}

type DBConfig struct {
	DSN string `envconfig:"CUISYNC_DB_DSN"`

	Host     string `envconfig:"CUISYNC_DB_HOST"`
	Port     int    `envconfig:"CUISYNC_DB_PORT" default:"5432"`
	User     string `envconfig:"CUISYNC_DB_USER"`
	Password string `envconfig:"CUISYNC_DB_PASSWORD"`
	Name     string `envconfig:"CUISYNC_DB_NAME"`
	SSLMode  string `envconfig:"CUISYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CUISYNC_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"CUISYNC_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"CUISYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CUISYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQuery   time.Duration `envconfig:"CUISYNC_DB_SLOW_QUERY" default:"200ms"`
	BusyTimeout time.Duration `envconfig:"CUISYNC_DB_BUSY_TIMEOUT" default:"5s"`

	AutoMigrate bool `envconfig:"CUISYNC_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CUISYNC_REDIS_URL"`
	Address      string        `envconfig:"CUISYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CUISYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CUISYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CUISYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CUISYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CUISYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CUISYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CUISYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CUISYNC_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SyncTopic        string `envconfig:"CUISYNC_PUBSUB_SYNC_TOPIC" default:"cuisync-sync"`
	SyncSubscription string `envconfig:"CUISYNC_PUBSUB_SYNC_SUBSCRIPTION"`
}

type SyncConfig struct {
	Transport      string        `envconfig:"CUISYNC_SYNC_TRANSPORT" default:"memory"`
	StartOnline    bool          `envconfig:"CUISYNC_SYNC_START_ONLINE" default:"true"`
	IdempotencyTTL time.Duration `envconfig:"CUISYNC_SYNC_IDEMPOTENCY_TTL" default:"24h"`
}

func (s SyncConfig) validate() error {
	switch strings.ToLower(s.Transport) {
	case TransportMemory, TransportRedis, TransportGCP:
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvSyncTransport, s.Transport)
}

// UsesRedis reports whether any configured component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return strings.EqualFold(c.Storage.Driver, StorageRedis) ||
		strings.EqualFold(c.Sync.Transport, TransportRedis) ||
		strings.EqualFold(c.Sync.Transport, TransportGCP)
}

// UsesDatabase reports whether the persistence adapter is backed by GORM.
func (c *Config) UsesDatabase() bool {
	return strings.EqualFold(c.Storage.Driver, StorageSQLite) ||
		strings.EqualFold(c.Storage.Driver, StoragePostgres)
}

func (c *Config) validateDependencies() error {
	if c.UsesRedis() && c.Redis.URL == "" && c.Redis.Address == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	if strings.EqualFold(c.Sync.Transport, TransportGCP) {
		missing := []string{}
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			missing = append(missing, EnvGCPProjectID)
		}
		if strings.TrimSpace(c.PubSub.SyncSubscription) == "" {
			missing = append(missing, EnvPubSubSyncSub)
		}
		if len(missing) > 0 {
			return fmt.Errorf("gcp sync transport requires %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

func (db *DBConfig) ensureDSN(driver string) error {
	if db.DSN != "" {
		return nil
	}

	switch strings.ToLower(driver) {
	case StorageSQLite:
		db.DSN = DefaultSQLiteDSN
		return nil
	case StoragePostgres:
	default:
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
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
