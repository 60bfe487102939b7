package placeorder

import (
	"context"
	"fmt"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/google/uuid"
)

// PointAccountRequest holds points on a customer account.
type PointAccountRequest struct {
	CallerID      string    `validate:"required"`
	TransactionID uuid.UUID `validate:"required"`
	AccountNumber string    `validate:"required"`
	Amount        int64     `validate:"gt=0"`
	Notes         string
}

// PointAccountAuthorizer holds points on the ledger as a pending Pay.
type PointAccountAuthorizer struct {
	svc    *Service
	ledger gateways.PointAccountService
}

func NewPointAccountAuthorizer(svc *Service, ledger gateways.PointAccountService) *PointAccountAuthorizer {
	return &PointAccountAuthorizer{svc: svc, ledger: ledger}
}

func (p *PointAccountAuthorizer) Authorize(ctx context.Context, req PointAccountRequest) (*action.Action, error) {
	return authorize(ctx, p.svc, authorization[action.PointAccountResult]{
		callerID:      req.CallerID,
		transactionID: req.TransactionID,
		objectType:    action.ObjectPointAccount,
		request:       req,
		attrs: func(_ context.Context, tx *transaction.Transaction) (action.Attributes, error) {
			return action.Attributes{
				Agent:     tx.Agent,
				Recipient: sellerParticipant(tx),
				Object: action.PointAccountObject{
					AccountNumber: req.AccountNumber,
					Amount:        req.Amount,
					Notes:         req.Notes,
				},
			}, nil
		},
		call: func(ctx context.Context, tx *transaction.Transaction, a *action.Action) (action.PointAccountResult, error) {
			pending, err := p.ledger.StartPay(ctx, gateways.PayRequest{
				AccountNumber: req.AccountNumber,
				Amount:        req.Amount,
				Notes:         req.Notes,
				Recipient:     tx.Seller.ID,
			})
			if err != nil {
				return action.PointAccountResult{}, err
			}
			return action.PointAccountResult{
				Price:                req.Amount,
				AccountNumber:        req.AccountNumber,
				PendingTransactionID: pending.ID,
			}, nil
		},
		release: func(ctx context.Context, r action.PointAccountResult) error {
			return p.ledger.Cancel(ctx, r.PendingTransactionID)
		},
	})
}

// Cancel cancels a point authorization and drops the pending ledger entry.
func (p *PointAccountAuthorizer) Cancel(ctx context.Context, callerID string, transactionID, actionID uuid.UUID) error {
	return p.svc.cancelAuthorization(ctx, callerID, transactionID, actionID, action.ObjectPointAccount,
		func(ctx context.Context, prev *action.Action) error {
			r, ok := prev.Result.(action.PointAccountResult)
			if !ok {
				return fmt.Errorf("action %s has no point account result", prev.ID)
			}
			return p.ledger.Cancel(ctx, r.PendingTransactionID)
		})
}
