package main

import (
	"context"
	"crypto/rand"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/powerpanel/api/handler"
	"github.com/fastygo/powerpanel/internal/config"
	"github.com/fastygo/powerpanel/internal/infrastructure/aead"
	"github.com/fastygo/powerpanel/internal/infrastructure/buffer"
	"github.com/fastygo/powerpanel/internal/infrastructure/control"
	"github.com/fastygo/powerpanel/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/powerpanel/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/powerpanel/internal/infrastructure/redis"
	"github.com/fastygo/powerpanel/internal/metrics"
	"github.com/fastygo/powerpanel/internal/middleware"
	"github.com/fastygo/powerpanel/internal/router"
	"github.com/fastygo/powerpanel/internal/services"
	"github.com/fastygo/powerpanel/internal/services/lifecycle"
	"github.com/fastygo/powerpanel/pkg/httpcontext"
	"github.com/fastygo/powerpanel/pkg/logger"
	"github.com/fastygo/powerpanel/repository"
	"github.com/fastygo/powerpanel/repository/memory"
	"github.com/fastygo/powerpanel/repository/postgres"
	redisRepo "github.com/fastygo/powerpanel/repository/redis"
	"github.com/fastygo/powerpanel/usecase"
	authUC "github.com/fastygo/powerpanel/usecase/auth"
	computerUC "github.com/fastygo/powerpanel/usecase/computer"
	sessionUC "github.com/fastygo/powerpanel/usecase/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	// Session storage: one isolated area per browser tab.
	var (
		storage     repository.SessionStorage
		redisClient *redislib.Client
	)
	switch cfg.Session.Store {
	case config.StoreRedis:
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register(lifecycle.StageStorage, "redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		storage = redisRepo.NewSessionStorage(redisClient, cfg.Session.BaseName, cfg.Session.IdleTTL)
	default:
		memStorage := memory.NewSessionStorage(cfg.Session.BaseName)
		manager.Register(lifecycle.StageStorage, "session_store", func(ctx context.Context) error {
			zapLogger.Info("discarding in-memory sessions", zap.Int("tabs", memStorage.Reset()))
			return nil
		})
		storage = memStorage
	}

	cipher, err := aead.New(aead.Algorithm(cfg.Session.Cipher), rand.Reader)
	if err != nil {
		zapLogger.Fatal("cipher setup failed", zap.Error(err))
	}
	sessionUseCase := sessionUC.New(cipher, storage, cfg.Session.TTL, zapLogger)

	controlClient := control.NewClient(cfg.Control)

	// Command audit log: Postgres, buffered in bbolt while the database is down.
	var (
		pool        *pgxpool.Pool
		bufferStore *buffer.Store
		commandRepo repository.CommandRepository
	)
	if cfg.Database.Enabled {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}

		pool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register(lifecycle.StageStorage, "postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})

		bufferStore, err = buffer.Open(cfg.Buffer.Path, "")
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.Register(lifecycle.StageStorage, "buffer", func(ctx context.Context) error {
			return bufferStore.Close()
		})

		commandRepo = postgres.NewCommandRepository(pool)
	}

	monOpts := monitor.Options{
		Postgres: pool,
		Buffer:   bufferStore,
		Control:  controlClient,
		Interval: 10 * time.Second,
		Logger:   zapLogger,
	}
	if redisClient != nil {
		monOpts.Redis = redisClient
	}
	mon := monitor.New(monOpts)
	mon.Refresh()
	mon.Start()
	manager.Register(lifecycle.StageWorkers, "monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	var audit usecase.CommandAudit
	if commandRepo != nil {
		bufferProcessor := services.NewBufferProcessor(
			bufferStore,
			mon,
			commandRepo,
			zapLogger,
			services.ProcessorConfig{
				Interval:   cfg.Buffer.SyncInterval,
				BatchSize:  cfg.Buffer.BatchSize,
				MaxRetries: cfg.Buffer.MaxRetry,
			},
		)
		bufferProcessor.Start()
		// A last drain delivers what was buffered before the stores close.
		manager.Register(lifecycle.StageWorkers, "buffer_processor", func(ctx context.Context) error {
			bufferProcessor.Stop(ctx)
			return bufferProcessor.Drain(ctx)
		}, lifecycle.WithTimeout(5*time.Second))
		audit = services.NewBufferBridge(bufferProcessor)
	}

	poller := services.NewPoller(controlClient, cfg.Poll.Interval, zapLogger)
	if cfg.Poll.Enabled {
		poller.Start(appCtx)
		manager.Register(lifecycle.StageWorkers, "poller", func(ctx context.Context) error {
			poller.Stop(ctx)
			return nil
		}, lifecycle.WithTimeout(cfg.Control.Timeout))
	}

	dispatcher := usecase.NewDispatcher(sessionUseCase, audit, zapLogger)
	computerUseCase := computerUC.New(controlClient, poller, audit, cfg.Admin.AccessPassword, zapLogger)
	computerUseCase.RegisterCommands(dispatcher)

	authUseCase := authUC.New(sessionUseCase, cfg.Admin, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:       apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Computer:   apiHandler.NewComputerHandler(computerUseCase, dispatcher, ctxAdapter, zapLogger),
		CommandLog: apiHandler.NewCommandLogHandler(commandRepo, ctxAdapter, zapLogger),
		Health:     apiHandler.NewHealthHandler(mon, cfg.Session.Store == config.StoreRedis, ctxAdapter, zapLogger),
	}

	opts := router.Options{Pprof: cfg.HTTP.EnablePprof}
	if cfg.HTTP.EnableMetrics {
		opts.Metrics = registry
	}
	r := router.New(handlers, middleware.RequireSession(sessionUseCase, ctxAdapter, zapLogger), opts)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("session_store", cfg.Session.Store),
			zap.String("cipher", string(cipher.Algorithm())))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register(lifecycle.StageServer, "http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
