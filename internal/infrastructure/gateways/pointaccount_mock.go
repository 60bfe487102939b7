package gateways

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

type pendingStatus int

const (
	pendingOpen pendingStatus = iota
	pendingConfirmed
	pendingCanceled
)

type pendingEntry struct {
	tx     PendingTransaction
	status pendingStatus
}

// MockPointAccountService is an in-memory ledger. Pay holds reduce the
// available balance until confirmed or canceled.
type MockPointAccountService struct {
	chaos

	mu       sync.Mutex
	balances map[string]int64
	held     map[string]int64
	pending  map[string]*pendingEntry
	ttl      time.Duration
}

func NewMockPointAccountService(opts ...MockOption) *MockPointAccountService {
	return &MockPointAccountService{
		chaos:    newChaos("pointaccount", opts),
		balances: make(map[string]int64),
		held:     make(map[string]int64),
		pending:  make(map[string]*pendingEntry),
		ttl:      15 * time.Minute,
	}
}

// OpenAccount creates or replaces an account with the given balance.
func (s *MockPointAccountService) OpenAccount(number string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[number] = balance
}

// Balance returns the settled balance of an account.
func (s *MockPointAccountService) Balance(number string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[number]
}

func (s *MockPointAccountService) StartPay(ctx context.Context, req PayRequest) (*PendingTransaction, error) {
	if err := s.before(ctx, "StartPay"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, domainErrors.Argument("amount", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[req.AccountNumber]
	if !ok {
		return nil, domainErrors.NotFound("point account")
	}
	if balance-s.held[req.AccountNumber] < req.Amount {
		return nil, domainErrors.Argument("amount", "insufficient balance")
	}
	s.held[req.AccountNumber] += req.Amount

	return s.open(PendingPay, req.AccountNumber, req.Amount), nil
}

func (s *MockPointAccountService) StartTransfer(ctx context.Context, req TransferRequest) (*PendingTransaction, error) {
	if err := s.before(ctx, "StartTransfer"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, domainErrors.Argument("amount", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[req.ToAccountNumber]; !ok {
		return nil, domainErrors.NotFound("point account")
	}
	return s.open(PendingTransfer, req.ToAccountNumber, req.Amount), nil
}

// Confirm settles a pending transaction. Confirming twice is a no-op.
func (s *MockPointAccountService) Confirm(ctx context.Context, pendingID string) error {
	if err := s.before(ctx, "Confirm"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return domainErrors.NotFound("pending transaction")
	}
	switch p.status {
	case pendingConfirmed:
		return nil
	case pendingCanceled:
		return domainErrors.Argument("pendingTransactionId", "already canceled")
	}

	switch p.tx.Kind {
	case PendingPay:
		s.held[p.tx.AccountNumber] -= p.tx.Amount
		s.balances[p.tx.AccountNumber] -= p.tx.Amount
	case PendingTransfer:
		s.balances[p.tx.AccountNumber] += p.tx.Amount
	}
	p.status = pendingConfirmed
	return nil
}

// Cancel drops a pending transaction. Canceling twice is a no-op.
func (s *MockPointAccountService) Cancel(ctx context.Context, pendingID string) error {
	if err := s.before(ctx, "Cancel"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return domainErrors.NotFound("pending transaction")
	}
	switch p.status {
	case pendingCanceled:
		return nil
	case pendingConfirmed:
		return domainErrors.Argument("pendingTransactionId", "already confirmed")
	}

	if p.tx.Kind == PendingPay {
		s.held[p.tx.AccountNumber] -= p.tx.Amount
	}
	p.status = pendingCanceled
	return nil
}

func (s *MockPointAccountService) open(kind PendingKind, account string, amount int64) *PendingTransaction {
	tx := PendingTransaction{
		ID:            uuid.NewString(),
		Kind:          kind,
		AccountNumber: account,
		Amount:        amount,
		Expires:       time.Now().Add(s.ttl),
	}
	s.pending[tx.ID] = &pendingEntry{tx: tx}
	out := tx
	return &out
}
