package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/rs/zerolog"
)

// Enqueuer turns declared follow-up actions into uniquely keyed tasks.
// Enqueueing the same follow-ups twice creates nothing new.
type Enqueuer struct {
	tasks  task.Repository
	cfg    config.TasksConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewEnqueuer(tasks task.Repository, cfg config.TasksConfig, logger zerolog.Logger, now func() time.Time) *Enqueuer {
	if now == nil {
		now = time.Now
	}
	return &Enqueuer{tasks: tasks, cfg: cfg, logger: logger, now: now}
}

// Enqueue saves one task per follow-up. scope distinguishes follow-ups of
// different parents that would otherwise share a key.
func (e *Enqueuer) Enqueue(ctx context.Context, scope string, followUps []action.Attributes) error {
	for _, attrs := range followUps {
		name, ok := task.NameFor(attrs)
		if !ok {
			return domainErrors.NotImplemented(fmt.Sprintf("no task for %s of %s", attrs.Kind, objectType(attrs)))
		}
		t, err := task.New(name, attrs, e.cfg.TriesFor(string(name)), e.now())
		if err != nil {
			return err
		}
		t.WithUniqueKey(Key(name, scope, attrs))

		created, err := e.tasks.Save(ctx, t)
		if err != nil {
			return fmt.Errorf("save %s task: %w", name, err)
		}
		e.logger.Debug().Str("task", string(name)).Str("unique_key", *t.UniqueKey).Bool("created", created).Msg("follow-up enqueued")
	}
	return nil
}

// Key is the unique key of a follow-up task. Payment follow-ups are keyed
// by the authorization they settle.
func Key(name task.Name, scope string, attrs action.Attributes) string {
	if obj, ok := attrs.Object.(action.PaymentObject); ok {
		return fmt.Sprintf("%s:%s:%s", name, scope, obj.AuthorizeActionID)
	}
	return fmt.Sprintf("%s:%s", name, scope)
}

func objectType(attrs action.Attributes) action.ObjectType {
	if attrs.Object == nil {
		return ""
	}
	return attrs.Object.ObjectType()
}
