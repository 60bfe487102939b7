package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

// ActionStore is an in-memory action.Repository with conditional writes.
type ActionStore struct {
	mu      sync.Mutex
	clock   *Clock
	actions map[uuid.UUID]*action.Action

	CompleteFunc func(ctx context.Context, kind action.Kind, id uuid.UUID, result action.Result) (*action.Action, error)
	GiveUpFunc   func(ctx context.Context, kind action.Kind, id uuid.UUID, actionErr *action.Error) (*action.Action, error)
}

func NewActionStore(clock *Clock) *ActionStore {
	return &ActionStore{clock: clock, actions: make(map[uuid.UUID]*action.Action)}
}

func (s *ActionStore) Start(ctx context.Context, attrs action.Attributes) (*action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := action.New(attrs, s.clock.Now())
	s.actions[a.ID] = a
	out := *a
	return &out, nil
}

func (s *ActionStore) Complete(ctx context.Context, kind action.Kind, id uuid.UUID, result action.Result) (*action.Action, error) {
	if s.CompleteFunc != nil {
		return s.CompleteFunc(ctx, kind, id, result)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.active(kind, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	a.Status = action.StatusCompleted
	a.Result = result
	a.EndDate = &now
	out := *a
	return &out, nil
}

func (s *ActionStore) GiveUp(ctx context.Context, kind action.Kind, id uuid.UUID, actionErr *action.Error) (*action.Action, error) {
	if s.GiveUpFunc != nil {
		return s.GiveUpFunc(ctx, kind, id, actionErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.active(kind, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	a.Status = action.StatusFailed
	a.Error = actionErr
	a.EndDate = &now
	out := *a
	return &out, nil
}

func (s *ActionStore) Cancel(ctx context.Context, kind action.Kind, id uuid.UUID) (*action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id]
	if !ok || a.Kind != kind || (a.Status != action.StatusActive && a.Status != action.StatusCompleted) {
		return nil, domainErrors.NotFound("action")
	}
	prev := *a
	if a.EndDate == nil {
		now := s.clock.Now()
		a.EndDate = &now
	}
	a.Status = action.StatusCanceled
	return &prev, nil
}

func (s *ActionStore) FindByID(ctx context.Context, kind action.Kind, id uuid.UUID) (*action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id]
	if !ok || a.Kind != kind {
		return nil, domainErrors.NotFound("action")
	}
	out := *a
	return &out, nil
}

func (s *ActionStore) FindAuthorizeByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*action.Action, error) {
	return s.FindByPurpose(ctx, action.KindAuthorize, transactionID.String())
}

func (s *ActionStore) FindByPurpose(ctx context.Context, kind action.Kind, purposeID string) ([]*action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*action.Action
	for _, a := range s.actions {
		if a.Kind == kind && a.Purpose.ID == purposeID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// All returns every stored action of a kind.
func (s *ActionStore) All(kind action.Kind) []*action.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*action.Action
	for _, a := range s.actions {
		if a.Kind == kind {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

func (s *ActionStore) active(kind action.Kind, id uuid.UUID) (*action.Action, error) {
	a, ok := s.actions[id]
	if !ok || a.Kind != kind || a.Status != action.StatusActive {
		return nil, domainErrors.NotFound("action")
	}
	return a, nil
}
