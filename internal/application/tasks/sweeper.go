package tasks

import (
	"context"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Sweeper expires overdue transactions and releases stale export leases and
// stuck tasks. Every pass is a set of conditional writes, safe to run on
// several replicas at once.
type Sweeper struct {
	transactions transaction.Repository
	tasks        task.Repository
	cfg          config.TasksConfig
	metrics      *observability.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewSweeper(transactions transaction.Repository, tasks task.Repository, cfg config.TasksConfig, metrics *observability.Metrics, logger zerolog.Logger, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		transactions: transactions,
		tasks:        tasks,
		cfg:          cfg,
		metrics:      metrics,
		logger:       observability.Component(logger, "sweeper"),
		now:          now,
	}
}

// SweepResult counts what one pass changed.
type SweepResult struct {
	Expired      int64
	Reexported   int64
	TasksRetried int64
	TasksAborted int64
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var err error

	if res.Expired, err = s.transactions.MakeExpired(ctx, s.now()); err != nil {
		return res, err
	}
	if res.Reexported, err = s.transactions.ReexportTasks(ctx, s.cfg.ReexportInterval); err != nil {
		return res, err
	}
	if res.TasksRetried, res.TasksAborted, err = s.tasks.RetryStuck(ctx, s.cfg.StuckInterval); err != nil {
		return res, err
	}

	if s.metrics != nil {
		s.metrics.ExpiredTotal.Add(float64(res.Expired))
		s.metrics.ExportLeasesRevoked.Add(float64(res.Reexported))
		s.metrics.StuckTasksReleased.WithLabelValues(string(task.StatusReady)).Add(float64(res.TasksRetried))
		s.metrics.StuckTasksReleased.WithLabelValues(string(task.StatusAborted)).Add(float64(res.TasksAborted))
	}
	if res != (SweepResult{}) {
		s.logger.Info().
			Int64("expired", res.Expired).
			Int64("reexported", res.Reexported).
			Int64("tasks_retried", res.TasksRetried).
			Int64("tasks_aborted", res.TasksAborted).
			Msg("sweep")
	}
	return res, nil
}
