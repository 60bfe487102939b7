package gateways

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
)

// MockCreditCardGateway keeps trades in memory and enforces the gateway's
// trade state machine.
type MockCreditCardGateway struct {
	chaos

	mu         sync.Mutex
	trades     map[string]*Trade // by order id
	byAccess   map[string]string // access id -> order id
	alterCalls []AlterTranRequest
}

func NewMockCreditCardGateway(opts ...MockOption) *MockCreditCardGateway {
	return &MockCreditCardGateway{
		chaos:    newChaos("creditcard", opts),
		trades:   make(map[string]*Trade),
		byAccess: make(map[string]string),
	}
}

func (g *MockCreditCardGateway) EntryTran(ctx context.Context, req EntryTranRequest) (*EntryTranResult, error) {
	if err := g.before(ctx, "EntryTran"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, domainErrors.Argument("amount", "must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.trades[req.OrderID]; ok {
		return nil, fmt.Errorf("order id %s: %w", req.OrderID, ErrDuplicateOrderID)
	}
	t := &Trade{
		OrderID:    req.OrderID,
		Status:     action.TradeUnprocessed,
		AccessID:   uuid.NewString(),
		AccessPass: uuid.NewString(),
		Amount:     req.Amount,
	}
	g.trades[req.OrderID] = t
	g.byAccess[t.AccessID] = req.OrderID

	return &EntryTranResult{AccessID: t.AccessID, AccessPass: t.AccessPass}, nil
}

func (g *MockCreditCardGateway) ExecTran(ctx context.Context, req ExecTranRequest) (*ExecTranResult, error) {
	if err := g.before(ctx, "ExecTran"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.tradeByAccess(req.AccessID, req.AccessPass)
	if err != nil {
		return nil, err
	}
	if t.OrderID != req.OrderID {
		return nil, domainErrors.Argument("orderId", "does not match access id")
	}
	if t.Status != action.TradeUnprocessed {
		return nil, domainErrors.Argument("orderId", "trade already executed")
	}
	t.Status = action.TradeAuth
	t.TranID = uuid.NewString()

	return &ExecTranResult{TranID: t.TranID}, nil
}

func (g *MockCreditCardGateway) AlterTran(ctx context.Context, req AlterTranRequest) (*AlterTranResult, error) {
	if err := g.before(ctx, "AlterTran"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.alterCalls = append(g.alterCalls, req)

	t, err := g.tradeByAccess(req.AccessID, req.AccessPass)
	if err != nil {
		return nil, err
	}

	switch {
	case req.JobCd == JobSales && t.Status == action.TradeAuth:
		t.Status = action.TradeSales
	case req.JobCd == JobVoid && (t.Status == action.TradeAuth || t.Status == action.TradeSales):
		t.Status = action.TradeVoid
	default:
		return nil, domainErrors.Argument("jobCd", fmt.Sprintf("cannot %s a trade in %s", req.JobCd, t.Status))
	}
	t.TranID = uuid.NewString()

	return &AlterTranResult{TranID: t.TranID, Status: t.Status}, nil
}

func (g *MockCreditCardGateway) SearchTrade(ctx context.Context, orderID string) (*Trade, error) {
	if err := g.before(ctx, "SearchTrade"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.trades[orderID]
	if !ok {
		return nil, domainErrors.NotFound("trade")
	}
	out := *t
	return &out, nil
}

// AlterTranCalls returns every AlterTran request received so far.
func (g *MockCreditCardGateway) AlterTranCalls() []AlterTranRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]AlterTranRequest(nil), g.alterCalls...)
}

func (g *MockCreditCardGateway) tradeByAccess(accessID, accessPass string) (*Trade, error) {
	orderID, ok := g.byAccess[accessID]
	if !ok {
		return nil, domainErrors.NotFound("trade")
	}
	t := g.trades[orderID]
	if t.AccessPass != accessPass {
		return nil, domainErrors.Forbidden("access pass mismatch")
	}
	return t, nil
}
