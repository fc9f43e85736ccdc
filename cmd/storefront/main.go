package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"SpiceStore/internal/cart"
	"SpiceStore/internal/catalog"
	"SpiceStore/internal/config"
	"SpiceStore/internal/order"
	"SpiceStore/internal/session"
	"SpiceStore/internal/storefront"
	"SpiceStore/pkg/kit"
)

const initialRefreshTimeout = 5 * time.Second

func main() {
	service := "storefront"

	cfg, err := config.LoadStorefront()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := kit.NewLogger(service, cfg.Log.Level)
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()

	orders, closeOrders := buildOrderStore(ctx, cfg, logger)
	defer closeOrders()

	publisher, closePublisher := buildPublisher(cfg, logger)
	defer closePublisher()

	portals := buildPortals(ctx, cfg, logger)

	sessions := session.NewRegistry(storefront.NewFactory(portals, cart.Deps{
		Recorder: &order.Ledger{Store: orders, Publisher: publisher, Log: logger},
		Sequence: cart.NewSequence(),
		Log:      logger,
		Metrics:  cart.NewMetrics(reg),
	}), logger)
	go sessions.Run(ctx, cfg.Session.Sweep, cfg.Session.Idle)

	s := &storefront.Server{
		Sessions: sessions,
		Tokens:   session.NewTokenMaker(cfg.Session.Secret, cfg.Session.TTL),
		Portals:  portals,
		Orders:   orders,
		Log:      logger,
	}

	h := storefront.NewHandler(s, kit.RouterDeps{
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

// buildPortals seeds every portal's catalog locally. With a catalog URL the
// seed is replaced by the catalog service's list and kept fresh.
func buildPortals(ctx context.Context, cfg config.Storefront, logger *zap.Logger) map[string]storefront.Portal {
	var client *catalog.Client
	if cfg.Catalog.URL != "" {
		client = catalog.NewClient(cfg.Catalog.URL)
	}

	portals := make(map[string]storefront.Portal, len(cfg.Portals))
	for name, policy := range cfg.Policies() {
		live := catalog.NewLive(catalog.NewSnapshot(catalog.Seed(name)))

		if client != nil {
			rf := &catalog.Refresher{Client: client, Portal: name, Live: live, Log: logger}

			rctx, cancel := context.WithTimeout(ctx, initialRefreshTimeout)
			if err := rf.Refresh(rctx); err != nil {
				logger.Warn("initial catalog refresh failed, serving seed", zap.String("portal", name), zap.Error(err))
			}
			cancel()

			if cfg.Catalog.Refresh > 0 {
				go rf.Run(ctx, cfg.Catalog.Refresh)
			}
		}

		portals[name] = storefront.Portal{
			Policy:    policy,
			Catalog:   live,
			Processor: cart.SimulatedProcessor{Delay: cfg.Portals[name].Delay},
		}
		logger.Info("portal ready",
			zap.String("portal", name),
			zap.Int("products", live.Snapshot().Len()),
			zap.Int("min_order_quantity", policy.MinOrderQuantity),
			zap.Strings("required_fields", policy.RequiredFields),
		)
	}
	return portals
}

func buildOrderStore(ctx context.Context, cfg config.Storefront, logger *zap.Logger) (order.Store, func()) {
	if cfg.Database.URL == "" {
		logger.Info("using in-memory order store")
		return order.NewMemStore(), func() {}
	}

	db, err := kit.OpenPostgres(ctx, cfg.Database.URL, 5*time.Second)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}

	store := order.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema failed", zap.Error(err))
	}

	logger.Info("using postgres order store")
	return store, func() { _ = db.Close() }
}

func buildPublisher(cfg config.Storefront, logger *zap.Logger) (order.Publisher, func()) {
	if cfg.Nats.URL == "" {
		return order.NopPublisher{}, func() {}
	}

	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name("spicestore-storefront"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}

	logger.Info("publishing order events", zap.String("subject", order.PlacedSubject))
	return order.NewNatsPublisher(nc), func() { _ = nc.Drain() }
}
