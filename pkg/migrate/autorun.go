package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/db"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

// MaybeAutoRun applies the embedded migrations on startup when the device owns
// its database (sqlite), when running in dev, or when auto-migrate is enabled.
func MaybeAutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoRun(cfg) {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "driver": cfg.Storage.Driver}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (auto-run)")

	if err := RunEmbedded(ctx, sqlDB, cfg.Storage.Driver, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

func shouldAutoRun(cfg *config.Config) bool {
	if cfg == nil || !cfg.UsesDatabase() {
		return false
	}
	return cfg.DB.AutoMigrate || cfg.App.IsDev() || strings.EqualFold(cfg.Storage.Driver, config.StorageSQLite)
}
