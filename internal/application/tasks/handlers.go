package tasks

import (
	"context"

	"github.com/cassiomorais/ordercore/internal/application/compensation"
	"github.com/cassiomorais/ordercore/internal/application/fulfillment"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/google/uuid"
)

// RegisterHandlers binds every task name to its service call.
func RegisterHandlers(e *Executor, f *fulfillment.Service, c *compensation.Service) {
	byTransaction := map[task.Name]func(context.Context, uuid.UUID) error{
		task.NamePlaceOrder:            f.PlaceOrder,
		task.NameReturnOrder:           f.ReturnOrder,
		task.NameCancelSeatReservation: c.CancelSeatReservationAuth,
		task.NameCancelCreditCard:      c.CancelCreditCardAuth,
		task.NameCancelPecorino:        c.CancelPointAccountAuth,
	}
	for name, fn := range byTransaction {
		e.Register(name, transactionHandler(fn))
	}

	byAction := map[task.Name]func(context.Context, action.Attributes) error{
		task.NamePayCreditCard:    f.PayCreditCard,
		task.NamePayPecorino:      f.PayPointAccount,
		task.NameRefundCreditCard: c.RefundCreditCard,
		task.NameRefundPecorino:   c.RefundPointAccount,
		task.NameSendOrder:        f.SendOrder,
	}
	for name, fn := range byAction {
		e.Register(name, actionHandler(fn))
	}
}

func transactionHandler(fn func(context.Context, uuid.UUID) error) Handler {
	return func(ctx context.Context, t *task.Task) error {
		var data task.TransactionData
		if err := t.DecodeData(&data); err != nil {
			return err
		}
		return fn(ctx, data.TransactionID)
	}
}

func actionHandler(fn func(context.Context, action.Attributes) error) Handler {
	return func(ctx context.Context, t *task.Task) error {
		var attrs action.Attributes
		if err := t.DecodeData(&attrs); err != nil {
			return err
		}
		return fn(ctx, attrs)
	}
}
