package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"liquidity-history-service/internal/config"
	historyHttp "liquidity-history-service/internal/history/adapters/http/fiber"
	"liquidity-history-service/internal/history/adapters/memory"
	"liquidity-history-service/internal/history/adapters/midgard"
	"liquidity-history-service/internal/history/adapters/mongodb"
	historyRepoPg "liquidity-history-service/internal/history/adapters/postgres"
	"liquidity-history-service/internal/history/adapters/rediscache"
	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/history/core/scheduler"
	historyUsecase "liquidity-history-service/internal/history/core/usecase"
	"liquidity-history-service/internal/logging"
	"liquidity-history-service/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	_ "liquidity-history-service/docs"
)

var log = logging.Component("main")

func main() {
	if err := run(); err != nil {
		log.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Config
	cfg, err := config.Load(config.Options{})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	// Store
	store, closeStore, err := openStore(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	if cfg.Redis.URL != "" {
		client := rediscache.NewClient(cfg.Redis.URL)
		if err := rediscache.Ping(ctx, client); err != nil {
			log.Warn("redis unavailable, query cache disabled", "error", err)
			_ = client.Close()
		} else {
			defer client.Close()
			store = rediscache.NewCachedStore(store, client, cfg.Redis.TTL)
			log.Info("query cache enabled", "ttl", cfg.Redis.TTL)
		}
	}

	// Upstream
	clientOpts := []midgard.ClientOption{
		midgard.WithPool(cfg.Upstream.Pool),
		midgard.WithInterval(cfg.Upstream.Interval),
		midgard.WithCount(cfg.Upstream.Count),
		midgard.WithTimeout(cfg.Upstream.Timeout),
	}
	if metrics != nil {
		clientOpts = append(clientOpts, midgard.WithLatencyObserver(metrics))
	}
	upstream := midgard.NewClient(cfg.Upstream.BaseURL, clientOpts...)

	// Usecases
	builder := historyUsecase.NewPipelineBuilder(
		historyUsecase.WithDefaultLimit(cfg.Query.DefaultLimit),
		historyUsecase.WithMaxLimit(cfg.Query.MaxLimit),
	)
	queryUC := historyUsecase.NewQueryHistoryUseCase(store, builder)
	ingestUC := historyUsecase.NewIngestDepthsUseCase(upstream, store, store)
	if metrics != nil {
		queryUC.WithObserver(metrics)
		ingestUC.WithObserver(metrics)
	}

	// HTTP (Fiber) app + handlers
	app := fiber.New(fiber.Config{
		AppName:               "liquidity-history-service",
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(requestid.New())

	depthHandler := historyHttp.NewDepthHandler(queryUC)
	app.Get("/api/depths", depthHandler.GetDepths)
	app.Get("/api/depth-history", depthHandler.GetDepthHistory)

	ingestionHandler := historyHttp.NewIngestionHandler(ingestUC)
	app.Post("/api/ingestion/runs", ingestionHandler.RunIngestion)

	app.Get("/health", historyHttp.Health)
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	// Swagger
	app.Get("/docs/*", fiberSwagger.WrapHandler)

	// Scheduler
	var wg sync.WaitGroup
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(ingestUC, store, scheduler.Config{
			Cadence:          cfg.Scheduler.Cadence,
			BackoffFloor:     cfg.Scheduler.BackoffFloor,
			BackoffCeiling:   cfg.Scheduler.BackoffCeiling,
			InitialWatermark: cfg.Scheduler.InitialWatermark,
		})
		if metrics != nil {
			sched.WithObserver(metrics)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx, cfg.Scheduler.InitialWatermark); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scheduler stopped", "error", err)
			}
		}()
	} else {
		log.Info("scheduler disabled")
	}

	// Graceful shutdown
	go func() {
		if err := app.Listen(cfg.Server.ListenAddr); err != nil {
			log.Error("fiber stopped", "error", err)
			stop()
		}
	}()

	log.Info("server started", "addr", cfg.Server.ListenAddr, "store", cfg.Store.Driver)

	<-ctx.Done()

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("fiber shutdown error", "error", err)
	}
	wg.Wait()

	log.Info("server exiting")
	return nil
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (ports.HistoryStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		store := mongodb.NewStoreFromDatabase(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		if metrics != nil {
			store.WithSkipRecorder(metrics)
		}
		log.Info("connected to mongo", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.DriverPostgres:
		db, err := historyRepoPg.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo := historyRepoPg.NewHistoryRepository(historyRepoPg.NewSQLDB(db))
		if metrics != nil {
			repo.WithSkipRecorder(metrics)
		}
		log.Info("connected to postgres")
		return repo, func() { _ = db.Close() }, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
