package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Handler performs the side effect of one task.
type Handler func(ctx context.Context, t *task.Task) error

// AbortedPublisher records tasks that ran out of tries.
type AbortedPublisher interface {
	PublishAborted(ctx context.Context, t infraRedis.AbortedTask) error
}

// Executor claims due tasks and runs their handlers. Retries are scheduled
// with exponential backoff until the tries run out.
type Executor struct {
	tasks    task.Repository
	handlers *xsync.MapOf[task.Name, Handler]
	cfg      config.TasksConfig
	aborted  AbortedPublisher
	metrics  *observability.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewExecutor(tasks task.Repository, cfg config.TasksConfig, aborted AbortedPublisher, metrics *observability.Metrics, logger zerolog.Logger, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{
		tasks:    tasks,
		handlers: xsync.NewMapOf[task.Name, Handler](),
		cfg:      cfg,
		aborted:  aborted,
		metrics:  metrics,
		logger:   observability.Component(logger, "executor"),
		now:      now,
	}
}

// Register sets the handler of a task name, replacing any previous one.
func (e *Executor) Register(name task.Name, h Handler) {
	e.handlers.Store(name, h)
}

// Registered lists the task names that have a handler.
func (e *Executor) Registered() []task.Name {
	names := make([]task.Name, 0, e.handlers.Size())
	e.handlers.Range(func(name task.Name, _ Handler) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ExecuteByName runs one due task of the given name. It reports whether a
// task was claimed. A handler error is recorded on the task, not returned.
func (e *Executor) ExecuteByName(ctx context.Context, name task.Name) (bool, error) {
	t, err := e.tasks.ClaimNext(ctx, name, e.now())
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return true, e.execute(ctx, t)
}

func (e *Executor) execute(ctx context.Context, t *task.Task) error {
	logger := e.logger.With().Str("task", string(t.Name)).Str("task_id", t.ID.String()).Int("tried", t.NumberOfTried).Logger()

	start := time.Now()
	runErr := e.run(ctx, t)
	if e.metrics != nil {
		e.metrics.TaskDuration.WithLabelValues(string(t.Name)).Observe(time.Since(start).Seconds())
	}

	now := e.now()
	result := task.ExecutionResult{ExecutedAt: now}
	if runErr == nil {
		if err := e.tasks.MarkExecuted(ctx, t.ID, result); err != nil {
			return err
		}
		e.count(t.Name, task.StatusExecuted)
		logger.Debug().Msg("task executed")
		return nil
	}

	result.Error = runErr.Error()
	retryAt := now.Add(task.Backoff(t.NumberOfTried, e.cfg.RetryBase, e.cfg.RetryMax))
	status, err := e.tasks.MarkFailed(ctx, t.ID, result, retryAt)
	if err != nil {
		return err
	}
	e.count(t.Name, status)

	if status != task.StatusAborted {
		logger.Warn().Err(runErr).Time("retry_at", retryAt).Int("remaining", t.RemainingNumberOfTries).Msg("task failed; will retry")
		return nil
	}

	logger.Error().Err(runErr).Msg("task aborted")
	if e.metrics != nil {
		e.metrics.TasksAbortedTotal.WithLabelValues(string(t.Name)).Inc()
	}
	if e.aborted != nil {
		if err := e.aborted.PublishAborted(ctx, infraRedis.AbortedTask{
			TaskID:        t.ID.String(),
			Name:          string(t.Name),
			NumberOfTried: t.NumberOfTried,
			LastError:     runErr.Error(),
			AbortedAt:     now,
		}); err != nil {
			logger.Error().Err(err).Msg("could not publish aborted task")
		}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, t *task.Task) (err error) {
	ctx, span := observability.StartSpan(ctx, "task."+string(t.Name),
		attribute.String("task_id", t.ID.String()),
		attribute.Int("tried", t.NumberOfTried),
	)
	defer func() { observability.EndSpan(span, err) }()

	h, ok := e.handlers.Load(t.Name)
	if !ok {
		return fmt.Errorf("no handler registered for task %s", t.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return h(ctx, t)
}

func (e *Executor) count(name task.Name, status task.Status) {
	if e.metrics != nil {
		e.metrics.TasksExecutedTotal.WithLabelValues(string(name), string(status)).Inc()
	}
}
