package placeorder

import (
	"context"
	"fmt"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/google/uuid"
)

// CreditCardRequest authorizes an amount on a tokenized card.
type CreditCardRequest struct {
	CallerID      string    `validate:"required"`
	TransactionID uuid.UUID `validate:"required"`
	Amount        int64     `validate:"gt=0"`
	Method        string    `validate:"required"`
	CardToken     string    `validate:"required"`
}

// CreditCardAuthorizer holds card authorizations on the payment gateway.
type CreditCardAuthorizer struct {
	svc     *Service
	gateway gateways.CreditCardGateway
}

func NewCreditCardAuthorizer(svc *Service, gateway gateways.CreditCardGateway) *CreditCardAuthorizer {
	return &CreditCardAuthorizer{svc: svc, gateway: gateway}
}

// Authorize enters and executes an AUTH trade. A gateway order id that was
// already used fails with AlreadyInUse.
func (c *CreditCardAuthorizer) Authorize(ctx context.Context, req CreditCardRequest) (*action.Action, error) {
	return authorize(ctx, c.svc, authorization[action.CreditCardResult]{
		callerID:      req.CallerID,
		transactionID: req.TransactionID,
		objectType:    action.ObjectCreditCard,
		request:       req,
		attrs: func(ctx context.Context, tx *transaction.Transaction) (action.Attributes, error) {
			orderID, err := c.orderID(ctx, tx)
			if err != nil {
				return action.Attributes{}, err
			}
			return action.Attributes{
				Agent:     tx.Agent,
				Recipient: sellerParticipant(tx),
				Object:    action.CreditCardObject{OrderID: orderID, Amount: req.Amount, Method: req.Method},
			}, nil
		},
		call: func(ctx context.Context, tx *transaction.Transaction, a *action.Action) (action.CreditCardResult, error) {
			obj, ok := a.Object.(action.CreditCardObject)
			if !ok {
				return action.CreditCardResult{}, fmt.Errorf("action %s has no credit card object", a.ID)
			}
			orderID := obj.OrderID
			entry, err := c.gateway.EntryTran(ctx, gateways.EntryTranRequest{
				OrderID: orderID,
				JobCd:   gateways.JobAuth,
				Amount:  req.Amount,
			})
			if err != nil {
				return action.CreditCardResult{}, err
			}
			exec, err := c.gateway.ExecTran(ctx, gateways.ExecTranRequest{
				AccessID:   entry.AccessID,
				AccessPass: entry.AccessPass,
				OrderID:    orderID,
				Method:     req.Method,
				CardToken:  req.CardToken,
			})
			if err != nil {
				return action.CreditCardResult{}, err
			}
			return action.CreditCardResult{
				Price:       req.Amount,
				OrderID:     orderID,
				AccessID:    entry.AccessID,
				AccessPass:  entry.AccessPass,
				TranID:      exec.TranID,
				TradeStatus: action.TradeAuth,
			}, nil
		},
		release: func(ctx context.Context, r action.CreditCardResult) error {
			return c.void(ctx, r)
		},
	})
}

// Cancel cancels a card authorization and voids the trade if it had been
// authorized.
func (c *CreditCardAuthorizer) Cancel(ctx context.Context, callerID string, transactionID, actionID uuid.UUID) error {
	return c.svc.cancelAuthorization(ctx, callerID, transactionID, actionID, action.ObjectCreditCard,
		func(ctx context.Context, prev *action.Action) error {
			r, ok := prev.Result.(action.CreditCardResult)
			if !ok {
				return fmt.Errorf("action %s has no credit card result", prev.ID)
			}
			return c.void(ctx, r)
		})
}

func (c *CreditCardAuthorizer) void(ctx context.Context, r action.CreditCardResult) error {
	_, err := c.gateway.AlterTran(ctx, gateways.AlterTranRequest{
		AccessID:   r.AccessID,
		AccessPass: r.AccessPass,
		JobCd:      gateways.JobVoid,
	})
	return err
}

// orderID builds {venue}{YYMMDD}{transaction suffix}{attempt}, unique per
// card attempt within the transaction. It is computed before the attempt is
// recorded, so the attempt number counts the authorizations already started.
func (c *CreditCardAuthorizer) orderID(ctx context.Context, tx *transaction.Transaction) (string, error) {
	actions, err := c.svc.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	if err != nil {
		return "", err
	}
	attempt := len(action.OfType(actions, action.ObjectCreditCard)) + 1
	id := tx.ID.String()
	return fmt.Sprintf("%s%s%s%02d",
		tx.Seller.VenueCode,
		c.svc.now().In(c.svc.loc).Format("060102"),
		id[len(id)-6:],
		attempt%100,
	), nil
}
