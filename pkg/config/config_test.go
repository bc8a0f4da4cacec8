package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}

	if got := cfg.Engine.PersistDebounce; got != 300*time.Millisecond {
		t.Fatalf("expected persist debounce 300ms, got %v", got)
	}

	if cfg.Device.Restaurant != "bistro-7" {
		t.Fatalf("unexpected restaurant %q", cfg.Device.Restaurant)
	}

	rate, err := cfg.Engine.TaxRate()
	if err != nil {
		t.Fatalf("TaxRate() returned unexpected error: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected tax rate 10, got %s", rate)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_SQLiteDefaultsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, StorageSQLite)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.DB.DSN != DefaultSQLiteDSN {
		t.Fatalf("expected default sqlite dsn, got %q", cfg.DB.DSN)
	}
	if !cfg.UsesDatabase() {
		t.Fatal("expected sqlite storage to use the database")
	}
}

func TestLoad_PostgresBuildsDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, StoragePostgres)
	t.Setenv(EnvDBHost, "db.internal")
	t.Setenv(EnvDBUser, "cuisync")
	t.Setenv(EnvDBName, "pads")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.DB.DSN != "postgres://cuisync@db.internal:5432/pads?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.DB.DSN)
	}
}

func TestLoad_PostgresMissingParts(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageDriver, StoragePostgres)

	if _, err := Load(); err == nil {
		t.Fatal("expected missing db env to return an error")
	}
}

func TestLoad_RejectsUnknownTransport(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSyncTransport, "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported transport to return an error")
	}
}

func TestLoad_GCPTransportRequiresSubscription(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSyncTransport, TransportGCP)
	t.Setenv(EnvGCPProjectID, "project-123")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing subscription to return an error")
	}

	t.Setenv(EnvPubSubSyncSub, "sync-sub")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.PubSub.SyncTopic != "cuisync-sync" {
		t.Fatalf("unexpected sync topic %q", cfg.PubSub.SyncTopic)
	}
}

func TestLoad_RejectsNegativeTaxRate(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvTaxRatePct, "-2")

	if _, err := Load(); err == nil {
		t.Fatal("expected negative tax rate to return an error")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRestaurantID, "bistro-7")
	t.Setenv(EnvTaxRatePct, "10")
	t.Setenv(EnvStorageDriver, StorageRedis)
	t.Setenv(EnvDBDSN, "")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvSyncTransport, TransportRedis)
	t.Setenv(EnvGCPProjectID, "")
	t.Setenv(EnvPubSubSyncSub, "")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
