package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/google/uuid"
)

// TransactionStore is an in-memory transaction.Repository. Every method
// checks its condition and writes under one lock, like the postgres store's
// conditional updates.
type TransactionStore struct {
	mu    sync.Mutex
	clock *Clock
	txs   map[uuid.UUID]*transaction.Transaction

	ConfirmFunc func(ctx context.Context, p transaction.ConfirmParams) (*transaction.Transaction, error)
}

func NewTransactionStore(clock *Clock) *TransactionStore {
	return &TransactionStore{clock: clock, txs: make(map[uuid.UUID]*transaction.Transaction)}
}

func (s *TransactionStore) Start(ctx context.Context, tx *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.txs {
		if tx.Object.PassportToken != "" && existing.Object.PassportToken == tx.Object.PassportToken {
			return domainErrors.AlreadyInUse("transaction", nil)
		}
		if tx.Kind == transaction.KindReturnOrder && existing.Kind == transaction.KindReturnOrder &&
			tx.Object.ReturnTarget != nil && existing.Object.ReturnTarget != nil &&
			existing.Object.ReturnTarget.TransactionID == tx.Object.ReturnTarget.TransactionID &&
			(existing.Status == transaction.StatusInProgress || existing.Status == transaction.StatusConfirmed) {
			return domainErrors.AlreadyInUse("transaction", nil)
		}
	}
	s.txs[tx.ID] = cloneTransaction(tx)
	return nil
}

func (s *TransactionStore) FindByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok || tx.Kind != kind {
		return nil, domainErrors.NotFound("transaction")
	}
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) FindInProgressByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.inProgress(kind, id)
	if err != nil {
		return nil, err
	}
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) SetCustomerContact(ctx context.Context, kind transaction.Kind, id uuid.UUID, contact transaction.CustomerContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.inProgress(kind, id)
	if err != nil {
		return err
	}
	tx.Object.CustomerContact = &contact
	tx.UpdatedAt = s.clock.Now()
	return nil
}

func (s *TransactionStore) Confirm(ctx context.Context, p transaction.ConfirmParams) (*transaction.Transaction, error) {
	if s.ConfirmFunc != nil {
		return s.ConfirmFunc(ctx, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.inProgress(p.Kind, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Kind == transaction.KindPlaceOrder {
		for _, other := range s.txs {
			if other.Status == transaction.StatusConfirmed && other.Kind == transaction.KindPlaceOrder &&
				other.Result.Order.OrderNumber == p.Result.Order.OrderNumber {
				return nil, domainErrors.AlreadyInUse("order number", nil)
			}
		}
	}

	now := s.clock.Now()
	result := p.Result
	tx.Status = transaction.StatusConfirmed
	tx.EndDate = &now
	tx.Object.AuthorizeActions = p.AuthorizeActions
	tx.Result = &result
	tx.PotentialActions = p.PotentialActions
	if tx.PotentialActions == nil {
		tx.PotentialActions = []action.Attributes{}
	}
	tx.UpdatedAt = now
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) Cancel(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.inProgress(kind, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	tx.Status = transaction.StatusCanceled
	tx.EndDate = &now
	tx.UpdatedAt = now
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, tx := range s.txs {
		if tx.Status == transaction.StatusInProgress && tx.Expires.Before(now) {
			end := now
			tx.Status = transaction.StatusExpired
			tx.EndDate = &end
			tx.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *TransactionStore) StartExportTasks(ctx context.Context, kind transaction.Kind, status transaction.Status) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*transaction.Transaction
	for _, tx := range s.txs {
		if tx.Kind == kind && tx.Status == status && tx.TasksExportationStatus == transaction.Unexported {
			candidates = append(candidates, tx)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	tx := candidates[0]
	tx.TasksExportationStatus = transaction.Exporting
	tx.UpdatedAt = s.clock.Now()
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) SetTasksExportedByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok || tx.TasksExportationStatus != transaction.Exporting {
		return domainErrors.NotFound("exporting transaction")
	}
	now := s.clock.Now()
	tx.TasksExportationStatus = transaction.Exported
	tx.TasksExportedAt = &now
	tx.UpdatedAt = now
	return nil
}

func (s *TransactionStore) ReexportTasks(ctx context.Context, interval time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-interval)
	var n int64
	for _, tx := range s.txs {
		if tx.TasksExportationStatus == transaction.Exporting && tx.UpdatedAt.Before(cutoff) {
			tx.TasksExportationStatus = transaction.Unexported
			tx.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *TransactionStore) FindConfirmedByOrderNumber(ctx context.Context, orderNumber string) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.txs {
		if tx.Kind == transaction.KindPlaceOrder && tx.Status == transaction.StatusConfirmed &&
			tx.Result != nil && tx.Result.Order.OrderNumber == orderNumber {
			return cloneTransaction(tx), nil
		}
	}
	return nil, domainErrors.NotFound("transaction")
}

// Put stores tx as is, bypassing every condition. Tests use it to seed state.
func (s *TransactionStore) Put(tx *transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = cloneTransaction(tx)
}

// Get returns the stored transaction without any condition.
func (s *TransactionStore) Get(id uuid.UUID) *transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil
	}
	return cloneTransaction(tx)
}

func (s *TransactionStore) inProgress(kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok || tx.Kind != kind || tx.Status != transaction.StatusInProgress {
		return nil, domainErrors.NotFound("transaction")
	}
	return tx, nil
}

func cloneTransaction(tx *transaction.Transaction) *transaction.Transaction {
	out := *tx
	if tx.Object.CustomerContact != nil {
		c := *tx.Object.CustomerContact
		out.Object.CustomerContact = &c
	}
	out.Object.AuthorizeActions = append([]*action.Action(nil), tx.Object.AuthorizeActions...)
	if tx.Result != nil {
		r := *tx.Result
		out.Result = &r
	}
	if tx.PotentialActions != nil {
		out.PotentialActions = append([]action.Attributes{}, tx.PotentialActions...)
	}
	return &out
}
