package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/google/uuid"
)

// TaskStore is an in-memory task.Repository.
type TaskStore struct {
	mu    sync.Mutex
	clock *Clock
	tasks map[uuid.UUID]*task.Task
	keys  map[string]uuid.UUID
}

func NewTaskStore(clock *Clock) *TaskStore {
	return &TaskStore{
		clock: clock,
		tasks: make(map[uuid.UUID]*task.Task),
		keys:  make(map[string]uuid.UUID),
	}
}

func (s *TaskStore) Save(ctx context.Context, t *task.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.UniqueKey != nil {
		if _, dup := s.keys[*t.UniqueKey]; dup {
			return false, nil
		}
		s.keys[*t.UniqueKey] = t.ID
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return true, nil
}

func (s *TaskStore) ClaimNext(ctx context.Context, name task.Name, now time.Time) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*task.Task
	for _, t := range s.tasks {
		if t.Name == name && t.Status == task.StatusReady && !t.RunsAt.After(now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunsAt.Before(due[j].RunsAt) })

	t := due[0]
	t.Status = task.StatusRunning
	t.NumberOfTried++
	t.RemainingNumberOfTries--
	tried := now
	t.LastTriedAt = &tried
	cp := *t
	return &cp, nil
}

func (s *TaskStore) MarkExecuted(ctx context.Context, id uuid.UUID, result task.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.running(id)
	if err != nil {
		return err
	}
	t.Status = task.StatusExecuted
	t.ExecutionResults = append(t.ExecutionResults, result)
	return nil
}

func (s *TaskStore) MarkFailed(ctx context.Context, id uuid.UUID, result task.ExecutionResult, retryAt time.Time) (task.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.running(id)
	if err != nil {
		return "", err
	}
	t.ExecutionResults = append(t.ExecutionResults, result)
	if t.RemainingNumberOfTries > 0 {
		t.Status = task.StatusReady
		t.RunsAt = retryAt
	} else {
		t.Status = task.StatusAborted
	}
	return t.Status, nil
}

func (s *TaskStore) RetryStuck(ctx context.Context, interval time.Duration) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-interval)
	var retried, aborted int64
	for _, t := range s.tasks {
		if t.Status != task.StatusRunning || t.LastTriedAt == nil || !t.LastTriedAt.Before(cutoff) {
			continue
		}
		if t.RemainingNumberOfTries > 0 {
			t.Status = task.StatusReady
			t.RunsAt = now
			retried++
		} else {
			t.Status = task.StatusAborted
			aborted++
		}
	}
	return retried, aborted, nil
}

// All returns stored tasks, optionally filtered by name.
func (s *TaskStore) All(names ...task.Name) []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[task.Name]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if len(want) == 0 || want[t.Name] {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a stored task.
func (s *TaskStore) Get(id uuid.UUID) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (s *TaskStore) running(id uuid.UUID) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.Status != task.StatusRunning {
		return nil, domainErrors.NotFound("running task")
	}
	return t, nil
}
