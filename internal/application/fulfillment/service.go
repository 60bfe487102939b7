package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/application/followup"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// TransactionManager runs fn in one database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service carries confirmed transactions through to settled payments,
// delivered orders and returns.
type Service struct {
	txManager    TransactionManager
	transactions transaction.Repository
	actions      action.Repository
	orders       order.Repository
	ownerships   order.OwnershipRepository
	creditCard   gateways.CreditCardGateway
	points       gateways.PointAccountService
	inventory    gateways.InventoryService
	notifier     gateways.Notifier
	followUps    *followup.Enqueuer
	logger       zerolog.Logger
	now          func() time.Time
}

type Deps struct {
	TxManager    TransactionManager
	Transactions transaction.Repository
	Actions      action.Repository
	Orders       order.Repository
	Ownerships   order.OwnershipRepository
	Gateways     *gateways.Set
	FollowUps    *followup.Enqueuer
	Logger       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		txManager:    d.TxManager,
		transactions: d.Transactions,
		actions:      d.Actions,
		orders:       d.Orders,
		ownerships:   d.Ownerships,
		creditCard:   d.Gateways.CreditCard,
		points:       d.Gateways.PointAccount,
		inventory:    d.Gateways.Inventory,
		notifier:     d.Gateways.Notifier,
		followUps:    d.FollowUps,
		logger:       observability.Component(d.Logger, "fulfillment"),
		now:          now,
	}
}

// PlaceOrder stores the order and ownerships of a confirmed transaction and
// enqueues its payments and notice.
func (s *Service) PlaceOrder(ctx context.Context, transactionID uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "fulfillment.placeOrder", attribute.String("transaction_id", transactionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	tx, err := s.confirmed(ctx, transaction.KindPlaceOrder, transactionID)
	if err != nil {
		return err
	}
	o := tx.Result.Order

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.CreateIfNotExist(ctx, &o); err != nil {
			return err
		}
		for _, info := range tx.Result.OwnershipInfos {
			if err := s.ownerships.Save(ctx, info); err != nil {
				return err
			}
		}
		for _, a := range tx.PotentialActions {
			if a.Kind != action.KindOrder {
				continue
			}
			if err := s.followUps.Enqueue(ctx, o.OrderNumber, a.PotentialActions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("transaction_id", tx.ID.String()).Str("order_number", o.OrderNumber).Msg("order placed")
	return nil
}

// ReturnOrder marks the order returned, ends its ownerships, enqueues the
// refunds and releases the reserved inventory.
func (s *Service) ReturnOrder(ctx context.Context, transactionID uuid.UUID) (err error) {
	ctx, span := observability.StartSpan(ctx, "fulfillment.returnOrder", attribute.String("transaction_id", transactionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	tx, err := s.confirmed(ctx, transaction.KindReturnOrder, transactionID)
	if err != nil {
		return err
	}
	target := tx.Object.ReturnTarget
	if target == nil {
		return domainErrors.ArgumentNull("returnTarget")
	}
	placed, err := s.transactions.FindByID(ctx, transaction.KindPlaceOrder, target.TransactionID)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.ChangeStatus(ctx, target.OrderNumber, order.StatusReturned); err != nil {
			return err
		}
		if _, err := s.ownerships.EndByOrderNumber(ctx, target.OrderNumber, now); err != nil {
			return err
		}
		for _, a := range tx.PotentialActions {
			if a.Kind != action.KindReturn {
				continue
			}
			if err := s.followUps.Enqueue(ctx, target.OrderNumber, a.PotentialActions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, a := range placed.Object.AuthorizeActions {
		switch r := a.Result.(type) {
		case action.SeatReservationResult:
			err = s.inventory.ReleaseSeats(ctx, r.ReservationRef)
		case action.MenuItemResult:
			err = s.inventory.ReleaseMenuItems(ctx, r.ReservationRef)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	s.logger.Info().Str("transaction_id", tx.ID.String()).Str("order_number", target.OrderNumber).Msg("order returned")
	return nil
}

// PayCreditCard captures an authorized trade. A trade already captured is
// left alone.
func (s *Service) PayCreditCard(ctx context.Context, attrs action.Attributes) error {
	return s.settle(ctx, action.KindPay, attrs, func(ctx context.Context) (action.Result, error) {
		obj, err := paymentObject(attrs, action.ObjectCreditCard)
		if err != nil {
			return nil, err
		}
		trade, err := s.creditCard.SearchTrade(ctx, obj.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		switch trade.Status {
		case action.TradeSales:
			return action.PaymentResult{TradeStatus: action.TradeSales, TransactionID: trade.TranID, NoOp: true}, nil
		case action.TradeAuth:
			altered, err := s.creditCard.AlterTran(ctx, gateways.AlterTranRequest{
				AccessID:   trade.AccessID,
				AccessPass: trade.AccessPass,
				JobCd:      gateways.JobSales,
				Amount:     obj.Price,
			})
			if err != nil {
				return nil, err
			}
			return action.PaymentResult{TradeStatus: altered.Status, TransactionID: altered.TranID}, nil
		default:
			return nil, domainErrors.Argument("trade", fmt.Sprintf("cannot capture a %s trade", trade.Status))
		}
	})
}

// PayPointAccount settles the pending ledger entry of a point payment.
func (s *Service) PayPointAccount(ctx context.Context, attrs action.Attributes) error {
	return s.settle(ctx, action.KindPay, attrs, func(ctx context.Context) (action.Result, error) {
		obj, err := paymentObject(attrs, action.ObjectPointAccount)
		if err != nil {
			return nil, err
		}
		if err := s.points.Confirm(ctx, obj.PendingTransactionID); err != nil {
			return nil, err
		}
		return action.PaymentResult{TransactionID: obj.PendingTransactionID}, nil
	})
}

// SendOrder notifies the customer. A confirmation notice also marks the
// order delivered; a notice for a returned order is a return notice.
func (s *Service) SendOrder(ctx context.Context, attrs action.Attributes) error {
	obj, ok := attrs.Object.(action.OrderObject)
	if attrs.Kind != action.KindSend || !ok {
		return domainErrors.Argument("attributes", "not a send action")
	}
	o, err := s.orders.FindByOrderNumber(ctx, obj.OrderNumber)
	if err != nil {
		return err
	}

	return s.settle(ctx, action.KindSend, attrs, func(ctx context.Context) (action.Result, error) {
		kind := gateways.MessageOrderConfirmed
		if o.Status == order.StatusReturned {
			kind = gateways.MessageOrderReturned
		}
		messageID, err := s.notifier.Send(ctx, gateways.Message{
			Kind:        kind,
			To:          o.Customer.Email,
			OrderNumber: o.OrderNumber,
			Order:       o,
		})
		if err != nil {
			return nil, err
		}
		if kind == gateways.MessageOrderConfirmed && o.Status == order.StatusProcessing {
			if err := s.orders.ChangeStatus(ctx, o.OrderNumber, order.StatusDelivered); err != nil {
				return nil, err
			}
		}
		return action.OrderResult{MessageID: messageID}, nil
	})
}

// settle records one follow-up action around fn. A failure is recorded on
// the action and returned for the task engine to retry.
func (s *Service) settle(ctx context.Context, kind action.Kind, attrs action.Attributes, fn func(ctx context.Context) (action.Result, error)) (err error) {
	if attrs.Kind != kind {
		return domainErrors.Argument("attributes", fmt.Sprintf("expected %s, got %s", kind, attrs.Kind))
	}
	ctx, span := observability.StartSpan(ctx, "fulfillment."+string(kind), attribute.String("purpose", attrs.Purpose.ID))
	defer func() { observability.EndSpan(span, err) }()

	started, err := s.actions.Start(ctx, attrs)
	if err != nil {
		return err
	}
	result, err := fn(ctx)
	if err != nil {
		if _, giveUpErr := s.actions.GiveUp(context.WithoutCancel(ctx), kind, started.ID, action.NewError(err)); giveUpErr != nil {
			s.logger.Warn().Err(giveUpErr).Str("action_id", started.ID.String()).Msg("could not record failed action")
		}
		return err
	}
	if _, err := s.actions.Complete(ctx, kind, started.ID, result); err != nil {
		return err
	}
	s.logger.Info().Str("action_id", started.ID.String()).Str("kind", string(kind)).Str("purpose", attrs.Purpose.ID).Msg("follow-up completed")
	return nil
}

func (s *Service) confirmed(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.transactions.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != transaction.StatusConfirmed || tx.Result == nil {
		return nil, domainErrors.NotFound("confirmed transaction")
	}
	return tx, nil
}

func paymentObject(attrs action.Attributes, method action.ObjectType) (action.PaymentObject, error) {
	obj, ok := attrs.Object.(action.PaymentObject)
	if !ok || obj.Method != method {
		return action.PaymentObject{}, domainErrors.Argument("object", fmt.Sprintf("not a %s payment", method))
	}
	return obj, nil
}
