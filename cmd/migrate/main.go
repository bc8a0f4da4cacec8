package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/db"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

var errUsage = errors.New("usage")

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.embedded, "embedded", false, "use the migrations compiled into the binary instead of -dir")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// schema files are checked and created without touching config or the database
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if opts.embedded {
			return report(migrate.ValidateEmbedded())
		}
		return report(migrate.ValidateDir(opts.dir))
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.UsesDatabase() {
		return fmt.Errorf("storage driver %q has no schema to migrate", cfg.Storage.Driver)
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Restaurant:  cfg.Device.Restaurant,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"cmd":      opts.cmd,
		"driver":   cfg.Storage.Driver,
		"embedded": opts.embedded,
	})

	client, err := db.New(ctx, cfg.Storage.Driver, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}

	start := time.Now()
	switch {
	case opts.cmd == "version":
		if opts.version == "" {
			return fmt.Errorf("%w: -version is required", errUsage)
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, cfg.Storage.Driver, opts.dir, opts.version)
	case opts.embedded:
		err = migrate.RunEmbedded(ctx, sqlDB, cfg.Storage.Driver, opts.cmd)
	default:
		err = migrate.Run(ctx, sqlDB, cfg.Storage.Driver, opts.dir, opts.cmd)
	}
	if err != nil {
		logg.Error(ctx, "migrate.failed", err)
		return err
	}
	logg.Info(logg.WithField(ctx, "elapsed_ms", time.Since(start).Milliseconds()), "migrate.done")
	return nil
}

func report(err error) error {
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Println("migrations valid")
	return nil
}
