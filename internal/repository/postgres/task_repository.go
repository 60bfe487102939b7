package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, name, status, runs_at, remaining_number_of_tries, number_of_tried,
	last_tried_at, execution_results, data, unique_key, created_at`

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool, now: time.Now}
}

func (r *TaskRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Save inserts a task; a conflicting unique key leaves the stored task as is.
func (r *TaskRepository) Save(ctx context.Context, t *task.Task) (bool, error) {
	results, err := json.Marshal(t.ExecutionResults)
	if err != nil {
		return false, fmt.Errorf("marshal execution results: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO tasks
		 (id, name, status, runs_at, remaining_number_of_tries, number_of_tried,
		  last_tried_at, execution_results, data, unique_key, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		 ON CONFLICT (unique_key) WHERE unique_key IS NOT NULL DO NOTHING`,
		t.ID, string(t.Name), string(t.Status), t.RunsAt, t.RemainingNumberOfTries, t.NumberOfTried,
		t.LastTriedAt, results, []byte(t.Data), t.UniqueKey, t.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimNext flips the oldest due Ready task of name to Running.
func (r *TaskRepository) ClaimNext(ctx context.Context, name task.Name, now time.Time) (*task.Task, error) {
	t, err := r.scanTask(r.db(ctx).QueryRow(ctx,
		`UPDATE tasks
		 SET status = 'Running',
		     number_of_tried = number_of_tried + 1,
		     remaining_number_of_tries = remaining_number_of_tries - 1,
		     last_tried_at = $2, updated_at = $2
		 WHERE id = (
		     SELECT id FROM tasks
		     WHERE name = $1 AND status = 'Ready' AND runs_at <= $2
		     ORDER BY runs_at ASC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+taskColumns,
		string(name), now))
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// MarkExecuted moves a Running task to Executed.
func (r *TaskRepository) MarkExecuted(ctx context.Context, id uuid.UUID, result task.ExecutionResult) error {
	entry, err := json.Marshal([]task.ExecutionResult{result})
	if err != nil {
		return fmt.Errorf("marshal execution result: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE tasks
		 SET status = 'Executed', execution_results = execution_results || $2::jsonb, updated_at = $3
		 WHERE id = $1 AND status = 'Running'`,
		id, entry, r.now(),
	)
	if err != nil {
		return fmt.Errorf("mark task executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NotFound("running task")
	}
	return nil
}

// MarkFailed reschedules a Running task or aborts it when no tries remain.
func (r *TaskRepository) MarkFailed(ctx context.Context, id uuid.UUID, result task.ExecutionResult, retryAt time.Time) (task.Status, error) {
	entry, err := json.Marshal([]task.ExecutionResult{result})
	if err != nil {
		return "", fmt.Errorf("marshal execution result: %w", err)
	}

	var status string
	err = r.db(ctx).QueryRow(ctx,
		`UPDATE tasks
		 SET status = CASE WHEN remaining_number_of_tries > 0 THEN 'Ready' ELSE 'Aborted' END,
		     runs_at = CASE WHEN remaining_number_of_tries > 0 THEN $3 ELSE runs_at END,
		     execution_results = execution_results || $2::jsonb,
		     updated_at = $4
		 WHERE id = $1 AND status = 'Running'
		 RETURNING status`,
		id, entry, retryAt, r.now(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domainErrors.NotFound("running task")
		}
		return "", fmt.Errorf("mark task failed: %w", err)
	}
	return task.Status(status), nil
}

// RetryStuck releases Running tasks abandoned by a crashed worker.
func (r *TaskRepository) RetryStuck(ctx context.Context, interval time.Duration) (int64, int64, error) {
	now := r.now()
	var retried, aborted int64
	err := r.db(ctx).QueryRow(ctx,
		`WITH stuck AS (
		     UPDATE tasks
		     SET status = CASE WHEN remaining_number_of_tries > 0 THEN 'Ready' ELSE 'Aborted' END,
		         updated_at = $2
		     WHERE status = 'Running' AND last_tried_at < $1
		     RETURNING status
		 )
		 SELECT COUNT(*) FILTER (WHERE status = 'Ready'),
		        COUNT(*) FILTER (WHERE status = 'Aborted')
		 FROM stuck`,
		now.Add(-interval), now,
	).Scan(&retried, &aborted)
	if err != nil {
		return 0, 0, fmt.Errorf("retry stuck tasks: %w", err)
	}
	return retried, aborted, nil
}

// --- scanning helpers ---

func (r *TaskRepository) scanTask(s scanner) (*task.Task, error) {
	t := &task.Task{}
	var (
		name, status  string
		results, data []byte
	)
	err := s.Scan(
		&t.ID, &name, &status, &t.RunsAt, &t.RemainingNumberOfTries, &t.NumberOfTried,
		&t.LastTriedAt, &results, &data, &t.UniqueKey, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NotFound("task")
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Name = task.Name(name)
	t.Status = task.Status(status)
	t.Data = data
	if err := json.Unmarshal(results, &t.ExecutionResults); err != nil {
		return nil, fmt.Errorf("unmarshal execution results: %w", err)
	}
	return t, nil
}
