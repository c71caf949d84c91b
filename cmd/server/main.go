package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"shortlink/internal/cache"
	"shortlink/internal/config"
	"shortlink/internal/handler"
	"shortlink/internal/logger"
	"shortlink/internal/metrics"
	"shortlink/internal/repository"
	"shortlink/internal/service"

	"github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := serve(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server gracefully stopped")
}

func serve(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	urlCache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	m := metrics.New()
	svc := service.NewService(store, urlCache, log, m, service.Options{
		BaseURL:      cfg.Service.BaseURL,
		CacheTTL:     cfg.Service.CacheTTL,
		ClickTimeout: cfg.Service.ClickTimeout,
	})
	h := handler.NewHandler(svc, log, m)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.CORSOrigins),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(log)),
		handlers.PrintRecoveryStack(false),
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      recovery(cors(h.Routes())),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var g run.Group
	{
		g.Add(func() error {
			log.Info("server listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Database.Driver))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "listen")
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("server shutdown", zap.Error(err))
			}
			// Redirects already answered may still have click updates in flight.
			if err := svc.Wait(shutdownCtx); err != nil {
				log.Warn("pending click updates abandoned", zap.Error(err))
			}
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	var sigPtr *run.SignalError
	switch {
	case errors.As(err, &sig):
		log.Info("shutting down", zap.Stringer("signal", sig.Signal))
		return nil
	case errors.As(err, &sigPtr):
		log.Info("shutting down", zap.Stringer("signal", sigPtr.Signal))
		return nil
	}
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	}

	if cfg.Database.Migrate {
		if err := repository.Migrate(cfg.Database.DSN, log); err != nil {
			return nil, nil, errors.Wrap(err, "migrate")
		}
	}

	pgConfig, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse database dsn")
	}
	if cfg.Database.MaxConns > 0 {
		pgConfig.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open database")
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "db ping")
	}
	log.Info("database connected")
	return repository.NewRepo(pool, cfg.Database.Timeout), pool.Close, nil
}

// openCache never fails: without a reachable Redis the service runs uncached.
func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Cache, func()) {
	opts := cfg.RedisOptions()
	if !opts.Enabled() {
		log.Info("redis not configured, caching disabled")
		return cache.Noop{}, func() {}
	}

	client, err := cache.NewRedisClient(opts)
	if err != nil {
		log.Warn("redis config invalid, caching disabled", zap.Error(err))
		return cache.Noop{}, func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed, caching disabled", zap.Error(err))
		_ = client.Close()
		return cache.Noop{}, func() {}
	}
	log.Info("redis connected")
	return cache.NewRedis(client), closeRedis(client, log)
}

func closeRedis(client *redis.Client, log *zap.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
}
