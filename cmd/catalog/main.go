package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"SpiceStore/internal/catalog"
	"SpiceStore/internal/config"
	"SpiceStore/pkg/kit"
)

func main() {
	service := "catalog"

	cfg, err := config.LoadCatalog()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := kit.NewLogger(service, cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := buildStore(ctx, cfg, logger)
	defer closeStore()

	reg := prometheus.NewRegistry()
	h := catalog.NewHandler(&catalog.Server{Store: store, Log: logger}, kit.RouterDeps{
		Log:            logger,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	if err := kit.RunHTTPServer(ctx, cfg.Server.ServerConfig(), h, logger); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

func buildStore(ctx context.Context, cfg config.Catalog, logger *zap.Logger) (catalog.Store, func()) {
	if cfg.Database.URL == "" {
		logger.Info("using in-memory catalog")
		return catalog.NewMemStore(), func() {}
	}

	db, err := kit.OpenPostgres(ctx, cfg.Database.URL, 5*time.Second)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	store := catalog.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema failed", zap.Error(err))
	}
	if cfg.Seed {
		if err := store.SeedDefaults(ctx); err != nil {
			logger.Fatal("seed catalog failed", zap.Error(err))
		}
	}

	logger.Info("using postgres catalog")
	return store, func() { _ = db.Close() }
}
