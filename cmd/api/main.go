package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/cuisync/api"
	"github.com/angelmondragon/cuisync/api/middleware"
	"github.com/angelmondragon/cuisync/api/routes"
	"github.com/angelmondragon/cuisync/internal/engine"
	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/instance"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	deviceID := instance.GetID(cfg.Device.ID)
	logg = logger.New(logger.Options{
		ServiceName: "api",
		DeviceID:    deviceID,
		Restaurant:  cfg.Device.Restaurant,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"storage":   cfg.Storage.Driver,
		"transport": cfg.Sync.Transport,
	})

	deps, err := openDependencies(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap dependencies", err)
		os.Exit(1)
	}
	defer deps.Close(ctx, logg)

	adapter, err := buildAdapter(cfg, deps)
	if err != nil {
		logg.Error(ctx, "failed to build persistence adapter", err)
		os.Exit(1)
	}
	channel, err := buildChannel(cfg, deviceID, deps, logg)
	if err != nil {
		logg.Error(ctx, "failed to build sync channel", err)
		os.Exit(1)
	}

	taxRate, _ := cfg.Engine.TaxRate()
	epsilon, _ := cfg.Engine.Epsilon()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng, err := engine.New(engine.Params{
		DeviceID:        deviceID,
		Channel:         channel,
		Adapter:         adapter,
		TaxRatePct:      taxRate,
		Epsilon:         epsilon,
		PersistDebounce: cfg.Engine.PersistDebounce,
		Online:          cfg.Sync.StartOnline,
		Metrics:         metrics.NewEngineMetrics(reg),
		Logger:          logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create engine", err)
		os.Exit(1)
	}

	if err := eng.Load(ctx); err != nil {
		// a device with unreadable state still takes orders; the notice is already raised
		logg.Error(ctx, "failed to load saved state", err)
	}
	if err := eng.Start(ctx); err != nil {
		logg.Error(ctx, "failed to subscribe to sync channel", err)
		os.Exit(1)
	}

	var idem middleware.ResponseStore
	if deps.redis != nil {
		idem = deps.redis
	}

	server := api.NewServer(cfg, routes.NewRouter(routes.Params{
		Config:      cfg,
		Logger:      logg,
		Engine:      eng,
		Idempotency: idem,
		Gatherer:    reg,
		Deps:        deps.pingers(),
	}))

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "http shutdown failed", err)
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logg.Error(ctx, "engine close failed", err)
	}
	logg.Info(ctx, "api server stopped")
}
