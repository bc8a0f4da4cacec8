package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/cuisync/api/controllers"
	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/internal/padsync/gcpchannel"
	"github.com/angelmondragon/cuisync/internal/padsync/memory"
	"github.com/angelmondragon/cuisync/internal/padsync/redischannel"
	"github.com/angelmondragon/cuisync/internal/persistence"
	"github.com/angelmondragon/cuisync/internal/persistence/redisstore"
	"github.com/angelmondragon/cuisync/internal/persistence/sqlstore"
	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/db"
	"github.com/angelmondragon/cuisync/pkg/idempotency"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/migrate"
	pkgpubsub "github.com/angelmondragon/cuisync/pkg/pubsub"
	pkgredis "github.com/angelmondragon/cuisync/pkg/redis"
)

// dependencies holds the external clients the configuration asks for.
// Unused ones stay nil.
type dependencies struct {
	db     *db.Client
	redis  *pkgredis.Client
	pubsub *pkgpubsub.Client
}

func openDependencies(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.UsesDatabase() {
		client, err := db.New(ctx, cfg.Storage.Driver, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		deps.db = client
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, client); err != nil {
			deps.Close(ctx, logg)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	if cfg.UsesRedis() {
		client, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			deps.Close(ctx, logg)
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		deps.redis = client
	}

	if strings.EqualFold(cfg.Sync.Transport, config.TransportGCP) {
		client, err := pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			deps.Close(ctx, logg)
			return nil, fmt.Errorf("bootstrap pubsub: %w", err)
		}
		deps.pubsub = client
	}

	return deps, nil
}

func (d *dependencies) pingers() map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if d.db != nil {
		out["database"] = d.db
	}
	if d.redis != nil {
		out["redis"] = d.redis
	}
	if d.pubsub != nil {
		out["pubsub"] = d.pubsub
	}
	return out
}

func (d *dependencies) Close(ctx context.Context, logg *logger.Logger) {
	if d.pubsub != nil {
		if err := d.pubsub.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}
}

// buildAdapter picks where the device keeps its pads, history and settings.
// The restaurant id scopes keys so several restaurants can share one backend.
func buildAdapter(cfg *config.Config, deps *dependencies) (persistence.Adapter, error) {
	scope := cfg.Device.Restaurant
	switch strings.ToLower(cfg.Storage.Driver) {
	case config.StorageMemory:
		return persistence.NewMemory(), nil
	case config.StorageSQLite, config.StoragePostgres:
		return sqlstore.New(deps.db.DB(), scope)
	case config.StorageRedis:
		return redisstore.New(deps.redis, scope)
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// buildChannel picks the transport that links this device to its peers.
// The memory hub only reaches devices inside this process.
func buildChannel(cfg *config.Config, deviceID string, deps *dependencies, logg *logger.Logger) (padsync.Channel, error) {
	switch strings.ToLower(cfg.Sync.Transport) {
	case config.TransportMemory:
		return memory.NewHub(), nil
	case config.TransportRedis:
		return redischannel.New(deps.redis, cfg.Device.Restaurant, logg)
	case config.TransportGCP:
		manager, err := idempotency.NewManager(deps.redis, cfg.Sync.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		return gcpchannel.New(gcpchannel.Params{
			DeviceID:     deviceID,
			Publisher:    deps.pubsub.SyncPublisher(),
			Subscription: deps.pubsub.SyncSubscription(),
			Idempotency:  manager,
			Logger:       logg,
		})
	}
	return nil, fmt.Errorf("unsupported sync transport %q", cfg.Sync.Transport)
}
