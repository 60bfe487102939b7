package compensation

import (
	"context"
	"fmt"

	"github.com/cassiomorais/ordercore/internal/application/followup"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	resultReversed = "reversed"
	resultNoOp     = "noop"
	resultFailed   = "failed"
)

// Service reverses external effects of abandoned transactions and refunds
// returned orders. Every operation is safe to repeat; retrying is left to
// the task engine.
type Service struct {
	actions    action.Repository
	creditCard gateways.CreditCardGateway
	points     gateways.PointAccountService
	inventory  gateways.InventoryService
	followUps  *followup.Enqueuer
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func NewService(
	actions action.Repository,
	gw *gateways.Set,
	followUps *followup.Enqueuer,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		actions:    actions,
		creditCard: gw.CreditCard,
		points:     gw.PointAccount,
		inventory:  gw.Inventory,
		followUps:  followUps,
		metrics:    metrics,
		logger:     observability.Component(logger, "compensation"),
	}
}

// completed returns the completed authorizations of one object type.
func (s *Service) completed(ctx context.Context, transactionID uuid.UUID, t action.ObjectType) ([]*action.Action, error) {
	all, err := s.actions.FindAuthorizeByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return action.OfType(action.Completed(all), t), nil
}

// CancelCreditCardAuth voids every authorized card trade of the
// transaction. A trade that is already void is recorded as a no-op.
func (s *Service) CancelCreditCardAuth(ctx context.Context, transactionID uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "compensation.cancelCreditCard", attribute.String("transaction_id", transactionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	authorizations, err := s.completed(ctx, transactionID, action.ObjectCreditCard)
	if err != nil {
		return err
	}
	for _, a := range authorizations {
		r, ok := a.Result.(action.CreditCardResult)
		if !ok {
			return fmt.Errorf("action %s has no credit card result", a.ID)
		}
		obj := action.PaymentObject{
			Method:            action.ObjectCreditCard,
			PaymentMethodID:   r.OrderID,
			Price:             r.Price,
			AuthorizeActionID: a.ID,
			AccessID:          r.AccessID,
			AccessPass:        r.AccessPass,
		}
		err := s.cancel(ctx, "cancel_credit_card", a, obj, func(ctx context.Context) (action.Result, bool, error) {
			trade, err := s.creditCard.SearchTrade(ctx, r.OrderID)
			if err != nil {
				return nil, false, err
			}
			if trade.Status == action.TradeVoid {
				return action.PaymentResult{TradeStatus: action.TradeVoid, TransactionID: trade.TranID, NoOp: true}, true, nil
			}
			altered, err := s.creditCard.AlterTran(ctx, gateways.AlterTranRequest{
				AccessID:   trade.AccessID,
				AccessPass: trade.AccessPass,
				JobCd:      gateways.JobVoid,
			})
			if err != nil {
				return nil, false, err
			}
			return action.PaymentResult{TradeStatus: altered.Status, TransactionID: altered.TranID}, false, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CancelPointAccountAuth drops the pending ledger entries of the
// transaction.
func (s *Service) CancelPointAccountAuth(ctx context.Context, transactionID uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "compensation.cancelPointAccount", attribute.String("transaction_id", transactionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	authorizations, err := s.completed(ctx, transactionID, action.ObjectPointAccount)
	if err != nil {
		return err
	}
	for _, a := range authorizations {
		r, ok := a.Result.(action.PointAccountResult)
		if !ok {
			return fmt.Errorf("action %s has no point account result", a.ID)
		}
		obj := action.PaymentObject{
			Method:               action.ObjectPointAccount,
			PaymentMethodID:      r.PendingTransactionID,
			Price:                r.Price,
			AuthorizeActionID:    a.ID,
			PendingTransactionID: r.PendingTransactionID,
			AccountNumber:        r.AccountNumber,
		}
		err := s.cancel(ctx, "cancel_point_account", a, obj, func(ctx context.Context) (action.Result, bool, error) {
			if err := s.points.Cancel(ctx, r.PendingTransactionID); err != nil {
				return nil, false, err
			}
			return action.PaymentResult{TransactionID: r.PendingTransactionID}, false, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CancelSeatReservationAuth releases every held seat and menu item of the
// transaction.
func (s *Service) CancelSeatReservationAuth(ctx context.Context, transactionID uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "compensation.cancelSeatReservation", attribute.String("transaction_id", transactionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	all, err := s.actions.FindAuthorizeByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	for _, a := range action.Completed(all) {
		var (
			obj     action.ReservationObject
			release func(ctx context.Context, ref string) error
		)
		switch r := a.Result.(type) {
		case action.SeatReservationResult:
			obj = action.ReservationObject{Method: action.ObjectSeatReservation, ReservationRef: r.ReservationRef, EventID: r.Event.ID}
			release = s.inventory.ReleaseSeats
		case action.MenuItemResult:
			obj = action.ReservationObject{Method: action.ObjectMenuItem, ReservationRef: r.ReservationRef, EventID: r.Event.ID}
			release = s.inventory.ReleaseMenuItems
		default:
			continue
		}
		obj.AuthorizeActionID = a.ID

		err := s.cancel(ctx, "cancel_reservation", a, obj, func(ctx context.Context) (action.Result, bool, error) {
			if err := release(ctx, obj.ReservationRef); err != nil {
				return nil, false, err
			}
			return action.ReservationResult{ReservationRef: obj.ReservationRef}, false, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// cancel records the reversal of one authorization as a CancelAction
// serving the same transaction.
func (s *Service) cancel(
	ctx context.Context,
	kind string,
	authorization *action.Action,
	obj action.Object,
	reverse func(ctx context.Context) (result action.Result, noOp bool, err error),
) error {
	started, err := s.actions.Start(ctx, action.Attributes{
		Kind:      action.KindCancel,
		Agent:     authorization.Agent,
		Recipient: authorization.Recipient,
		Object:    obj,
		Purpose:   authorization.Purpose,
	})
	if err != nil {
		return err
	}
	logger := s.logger.With().
		Str("action_id", started.ID.String()).
		Str("authorize_action_id", authorization.ID.String()).
		Str("transaction_id", authorization.Purpose.ID).
		Logger()

	result, noOp, err := reverse(ctx)
	if err != nil {
		s.giveUp(ctx, started, err)
		s.count(kind, resultFailed)
		logger.Warn().Err(err).Msg("cancel failed")
		return err
	}
	if _, err := s.actions.Complete(ctx, action.KindCancel, started.ID, result); err != nil {
		s.giveUp(ctx, started, err)
		s.count(kind, resultFailed)
		return err
	}
	if noOp {
		s.count(kind, resultNoOp)
	} else {
		s.count(kind, resultReversed)
	}
	logger.Info().Bool("noop", noOp).Msg("authorization canceled")
	return nil
}

// RefundCreditCard voids the settled or authorized trade behind a
// RefundAction, then enqueues the refund's follow-ups.
func (s *Service) RefundCreditCard(ctx context.Context, attrs action.Attributes) error {
	return s.refund(ctx, "refund_credit_card", attrs, func(ctx context.Context, obj action.PaymentObject) (action.PaymentResult, error) {
		trade, err := s.creditCard.SearchTrade(ctx, obj.PaymentMethodID)
		if err != nil {
			return action.PaymentResult{}, err
		}
		switch trade.Status {
		case action.TradeVoid:
			return action.PaymentResult{TradeStatus: action.TradeVoid, TransactionID: trade.TranID, NoOp: true}, nil
		case action.TradeAuth, action.TradeSales:
			altered, err := s.creditCard.AlterTran(ctx, gateways.AlterTranRequest{
				AccessID:   trade.AccessID,
				AccessPass: trade.AccessPass,
				JobCd:      gateways.JobVoid,
			})
			if err != nil {
				return action.PaymentResult{}, err
			}
			return action.PaymentResult{TradeStatus: altered.Status, TransactionID: altered.TranID}, nil
		default:
			return action.PaymentResult{}, domainErrors.Argument("trade", fmt.Sprintf("cannot refund a %s trade", trade.Status))
		}
	})
}

// RefundPointAccount transfers the paid points back to the customer
// account, then enqueues the refund's follow-ups.
func (s *Service) RefundPointAccount(ctx context.Context, attrs action.Attributes) error {
	return s.refund(ctx, "refund_point_account", attrs, func(ctx context.Context, obj action.PaymentObject) (action.PaymentResult, error) {
		pending, err := s.points.StartTransfer(ctx, gateways.TransferRequest{
			ToAccountNumber: obj.AccountNumber,
			Amount:          obj.Price,
			Notes:           "refund " + obj.OrderNumber,
			Agent:           attrs.Agent.ID,
		})
		if err != nil {
			return action.PaymentResult{}, err
		}
		if err := s.points.Confirm(ctx, pending.ID); err != nil {
			return action.PaymentResult{}, err
		}
		return action.PaymentResult{TransactionID: pending.ID}, nil
	})
}

func (s *Service) refund(
	ctx context.Context,
	kind string,
	attrs action.Attributes,
	reverse func(ctx context.Context, obj action.PaymentObject) (action.PaymentResult, error),
) (err error) {
	obj, ok := attrs.Object.(action.PaymentObject)
	if attrs.Kind != action.KindRefund || !ok {
		return domainErrors.Argument("attributes", "not a refund action")
	}
	ctx, span := observability.StartSpan(ctx, "compensation."+kind,
		attribute.String("order_number", obj.OrderNumber),
		attribute.String("authorize_action_id", obj.AuthorizeActionID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	started, err := s.actions.Start(ctx, attrs)
	if err != nil {
		return err
	}
	logger := s.logger.With().Str("action_id", started.ID.String()).Str("order_number", obj.OrderNumber).Logger()

	result, err := reverse(ctx, obj)
	if err != nil {
		s.giveUp(ctx, started, err)
		s.count(kind, resultFailed)
		logger.Warn().Err(err).Msg("refund failed")
		return err
	}
	completed, err := s.actions.Complete(ctx, action.KindRefund, started.ID, result)
	if err != nil {
		s.giveUp(ctx, started, err)
		s.count(kind, resultFailed)
		return err
	}
	if result.NoOp {
		s.count(kind, resultNoOp)
	} else {
		s.count(kind, resultReversed)
	}
	logger.Info().Bool("noop", result.NoOp).Msg("refund completed")

	return s.followUps.Enqueue(ctx, "refund:"+obj.AuthorizeActionID.String(), completed.PotentialActions)
}

func (s *Service) giveUp(ctx context.Context, a *action.Action, cause error) {
	if _, err := s.actions.GiveUp(context.WithoutCancel(ctx), a.Kind, a.ID, action.NewError(cause)); err != nil {
		s.logger.Warn().Err(err).Str("action_id", a.ID.String()).Msg("could not record failed action")
		if s.metrics != nil {
			s.metrics.BookkeepingFailures.WithLabelValues("give_up").Inc()
		}
	}
}

func (s *Service) count(kind, result string) {
	if s.metrics != nil {
		s.metrics.CompensationsTotal.WithLabelValues(kind, result).Inc()
	}
}
