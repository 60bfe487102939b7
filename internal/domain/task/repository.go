package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Save inserts a task. A uniquely keyed task that already exists is left
	// untouched and created is false.
	Save(ctx context.Context, t *Task) (created bool, err error)

	// ClaimNext flips one due Ready task to Running, counting the attempt.
	// It returns nil when nothing is due.
	ClaimNext(ctx context.Context, name Name, now time.Time) (*Task, error)

	// MarkExecuted moves a Running task to Executed
	MarkExecuted(ctx context.Context, id uuid.UUID, result ExecutionResult) error

	// MarkFailed moves a Running task back to Ready at retryAt while tries
	// remain, otherwise to Aborted. It returns the new status.
	MarkFailed(ctx context.Context, id uuid.UUID, result ExecutionResult, retryAt time.Time) (Status, error)

	// RetryStuck releases Running tasks whose last attempt is older than
	// interval. Tasks without remaining tries are aborted instead.
	RetryStuck(ctx context.Context, interval time.Duration) (retried, aborted int64, err error)
}
