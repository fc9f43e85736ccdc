package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"SpiceStore/internal/config"
	"SpiceStore/internal/gateway"
	"SpiceStore/pkg/kit"
)

func main() {
	service := "gateway"

	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := kit.NewLogger(service, cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := gateway.Deps{
		CatalogURL:    cfg.Upstreams.Catalog,
		StorefrontURL: cfg.Upstreams.Storefront,
		SessionLimit:  cfg.RateLimit.Sessions,
		SessionWindow: cfg.RateLimit.Window,
	}

	reg := prometheus.NewRegistry()
	h, err := gateway.NewHandler(deps, kit.RouterDeps{
		Log:            logger,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})
	if err != nil {
		logger.Fatal("init gateway handler failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(ctx, cfg.Server.ServerConfig(), h, logger); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}
