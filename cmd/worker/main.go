package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/ordercore/internal/application/compensation"
	"github.com/cassiomorais/ordercore/internal/application/followup"
	"github.com/cassiomorais/ordercore/internal/application/fulfillment"
	"github.com/cassiomorais/ordercore/internal/application/tasks"
	"github.com/cassiomorais/ordercore/internal/bootstrap"
	"github.com/cassiomorais/ordercore/internal/controller"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/cassiomorais/ordercore/internal/repository/postgres"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const serviceName = "ordercore-worker"

// exports lists every terminal (kind, status) pair whose tasks are emitted.
var exports = []struct {
	kind   transaction.Kind
	status transaction.Status
}{
	{transaction.KindPlaceOrder, transaction.StatusConfirmed},
	{transaction.KindPlaceOrder, transaction.StatusCanceled},
	{transaction.KindPlaceOrder, transaction.StatusExpired},
	{transaction.KindReturnOrder, transaction.StatusConfirmed},
	{transaction.KindReturnOrder, transaction.StatusCanceled},
	{transaction.KindReturnOrder, transaction.StatusExpired},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, serviceName, "ordercore")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	now := time.Now

	// --- Repositories ---
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	actionRepo := postgres.NewActionRepository(app.Pool)
	taskRepo := postgres.NewTaskRepository(app.Pool)
	orderRepo := postgres.NewOrderRepository(app.Pool)
	ownershipRepo := postgres.NewOwnershipRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	abortedStream := infraRedis.NewStreamProducer(app.Redis, cfg.Tasks.AbortedStream)

	// --- External systems ---
	gw, _ := gateways.NewMockSet(cfg.Gateways, app.Metrics, app.Logger)

	// --- Services ---
	followUps := followup.NewEnqueuer(taskRepo, cfg.Tasks, app.Logger, now)
	fulfill := fulfillment.NewService(fulfillment.Deps{
		TxManager:    txManager,
		Transactions: transactionRepo,
		Actions:      actionRepo,
		Orders:       orderRepo,
		Ownerships:   ownershipRepo,
		Gateways:     gw,
		FollowUps:    followUps,
		Logger:       app.Logger,
		Now:          now,
	})
	compensate := compensation.NewService(actionRepo, gw, followUps, app.Metrics, app.Logger)

	exporter := tasks.NewExporter(transactionRepo, taskRepo, cfg.Tasks, app.Metrics, app.Logger, now)
	executor := tasks.NewExecutor(taskRepo, cfg.Tasks, abortedStream, app.Metrics, app.Logger, now)
	tasks.RegisterHandlers(executor, fulfill, compensate)
	sweeper := tasks.NewSweeper(transactionRepo, taskRepo, cfg.Tasks, app.Metrics, app.Logger, now)

	// --- Ops server ---
	router := controller.NewRouter(controller.RouterDeps{
		ServiceName: serviceName,
		Health: map[string]controller.Pinger{
			"database": app.Pool,
			"redis": controller.PingerFunc(func(ctx context.Context) error {
				return app.Redis.Ping(ctx).Err()
			}),
		},
		Transactions: transactionRepo,
		Exporter:     exporter,
		Aborted:      abortedStream,
		Metrics:      app.Metrics,
		RateLimit:    cfg.Ops.RateLimit,
	})
	addr := fmt.Sprintf(":%d", cfg.Ops.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Ops server.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting ops server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// 2. Sweeper: expiry, export leases and stuck tasks.
	g.Go(func() error {
		return every(gCtx, cfg.Tasks.SweepInterval, func(ctx context.Context) {
			if _, err := sweeper.Sweep(ctx); err != nil {
				app.Logger.Error().Err(err).Msg("Sweep failed")
			}
		})
	})

	// 3. Exporters, one per terminal state.
	for _, e := range exports {
		g.Go(func() error {
			return every(gCtx, cfg.Tasks.ExportInterval, func(ctx context.Context) {
				if _, err := exporter.ExportAll(ctx, e.kind, e.status); err != nil && ctx.Err() == nil {
					app.Logger.Error().Err(err).Str("kind", string(e.kind)).Str("status", string(e.status)).Msg("Export failed")
				}
			})
		})
	}

	// 4. Task runners.
	for _, name := range executor.Registered() {
		for i := 0; i < cfg.Tasks.Concurrency; i++ {
			g.Go(func() error {
				return runTasks(gCtx, app.Logger, executor, name, cfg.Tasks.PollInterval)
			})
		}
	}

	// 5. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	app.Logger.Info().
		Int("task_names", len(executor.Registered())).
		Int("concurrency", cfg.Tasks.Concurrency).
		Msg("Worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// every runs fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// runTasks drains due tasks of one name and idles for pollInterval when none
// are due.
func runTasks(ctx context.Context, logger zerolog.Logger, executor *tasks.Executor, name task.Name, pollInterval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ran, err := executor.ExecuteByName(ctx, name)
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Str("task", string(name)).Msg("Task execution failed")
		}
		if ran && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pollInterval):
		}
	}
}
