// Package bootstrap builds the process-wide dependencies shared by the
// binaries: configuration, logging, tracing, metrics and connections.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/cassiomorais/ordercore/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// New loads configuration and connects to PostgreSQL and Redis. The tracer
// provider, when enabled, is flushed once ctx is done.
func New(ctx context.Context, serviceName, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obs := cfg.Observability
	logger := observability.InitLogger(obs.LogLevel, obs.LogFormat, os.Stdout).
		With().Str("service", serviceName).Str("instance", cfg.InstanceID).Logger()

	tracing := obs.EnableTracing && startTracing(ctx, serviceName, obs.JaegerEndpoint, logger)

	var metrics *observability.Metrics
	if obs.EnableMetrics {
		metrics = observability.NewMetrics(metricsNamespace, nil)
	}

	pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if tracing {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Warn().Err(err).Msg("Redis tracing disabled")
		}
	}

	logger.Info().
		Bool("tracing", tracing).
		Bool("metrics", metrics != nil).
		Str("database", cfg.Database.Host).
		Str("redis", cfg.Redis.RedisAddr()).
		Msg("Started")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	}, nil
}

func startTracing(ctx context.Context, serviceName, endpoint string, logger zerolog.Logger) bool {
	tp, err := observability.InitTracer(serviceName, endpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("Tracer unavailable, continuing without tracing")
		return false
	}
	go func() {
		<-ctx.Done()
		if err := observability.Shutdown(context.Background(), tp); err != nil {
			logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()
	return true
}

func (a *App) Close() {
	_ = a.Redis.Close()
	a.Pool.Close()
}
