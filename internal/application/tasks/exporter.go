package tasks

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskNames returns the tasks a terminal transaction emits.
func TaskNames(kind transaction.Kind, status transaction.Status) ([]task.Name, error) {
	switch {
	case kind == transaction.KindPlaceOrder && status == transaction.StatusConfirmed:
		return []task.Name{task.NamePlaceOrder}, nil
	case kind == transaction.KindReturnOrder && status == transaction.StatusConfirmed:
		return []task.Name{task.NameReturnOrder}, nil
	case kind == transaction.KindPlaceOrder && (status == transaction.StatusCanceled || status == transaction.StatusExpired):
		return []task.Name{task.NameCancelSeatReservation, task.NameCancelCreditCard, task.NameCancelPecorino}, nil
	case kind == transaction.KindReturnOrder && (status == transaction.StatusCanceled || status == transaction.StatusExpired):
		return []task.Name{}, nil
	}
	return nil, domainErrors.NotImplemented(fmt.Sprintf("no tasks for %s %s", kind, status))
}

// Exporter emits the follow-up tasks of terminal transactions exactly once
// per transaction, guarded by the exportation status.
type Exporter struct {
	transactions transaction.Repository
	tasks        task.Repository
	cfg          config.TasksConfig
	metrics      *observability.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewExporter(transactions transaction.Repository, tasks task.Repository, cfg config.TasksConfig, metrics *observability.Metrics, logger zerolog.Logger, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		transactions: transactions,
		tasks:        tasks,
		cfg:          cfg,
		metrics:      metrics,
		logger:       observability.Component(logger, "exporter"),
		now:          now,
	}
}

// ExportTasksByID saves the tasks of one transaction. Tasks are keyed by
// name and transaction, so repeating the export creates nothing new.
func (e *Exporter) ExportTasksByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) ([]*task.Task, error) {
	tx, err := e.transactions.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	names, err := TaskNames(tx.Kind, tx.Status)
	if err != nil {
		return nil, err
	}

	out := make([]*task.Task, 0, len(names))
	for _, name := range names {
		t, err := task.New(name, task.TransactionData{TransactionID: tx.ID}, e.cfg.TriesFor(string(name)), e.now())
		if err != nil {
			return nil, err
		}
		t.WithUniqueKey(task.TransactionKey(name, tx.ID))
		created, err := e.tasks.Save(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("save %s task: %w", name, err)
		}
		if e.metrics != nil {
			e.metrics.TasksExportedTotal.WithLabelValues(string(name), fmt.Sprint(created)).Inc()
		}
		out = append(out, t)
	}
	return out, nil
}

// ExportTasks claims one unexported transaction of the given kind and
// status, emits its tasks and marks it exported. It returns nil when
// nothing was pending. A failed export keeps the lease until the sweeper
// releases it.
func (e *Exporter) ExportTasks(ctx context.Context, kind transaction.Kind, status transaction.Status) (*transaction.Transaction, error) {
	tx, err := e.transactions.StartExportTasks(ctx, kind, status)
	if err != nil || tx == nil {
		return nil, err
	}
	logger := e.logger.With().Str("transaction_id", tx.ID.String()).Str("status", string(status)).Logger()

	emitted, err := e.ExportTasksByID(ctx, kind, tx.ID)
	if err != nil {
		logger.Error().Err(err).Msg("export failed; lease kept until reexport")
		return nil, err
	}
	if err := e.transactions.SetTasksExportedByID(ctx, tx.ID); err != nil {
		return nil, err
	}
	logger.Info().Int("tasks", len(emitted)).Msg("tasks exported")
	return tx, nil
}

// ExportAll drains every pending export of the given kind and status.
func (e *Exporter) ExportAll(ctx context.Context, kind transaction.Kind, status transaction.Status) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		tx, err := e.ExportTasks(ctx, kind, status)
		if err != nil {
			return n, err
		}
		if tx == nil {
			return n, nil
		}
		n++
	}
}
