package returnorder

import (
	"context"
	"time"

	"github.com/cassiomorais/ordercore/internal/application/request"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Service drives ReturnOrder transactions.
type Service struct {
	transactions transaction.Repository
	cfg          config.TransactionConfig
	metrics      *observability.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(transactions transaction.Repository, cfg config.TransactionConfig, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		cfg:          cfg,
		logger:       observability.Component(logger, "returnorder"),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type StartRequest struct {
	Agent       action.Participant
	OrderNumber string `validate:"required"`
	// Expires defaults to now plus the configured default expiry.
	Expires time.Time
}

// Start opens a return of a confirmed order. An order with a return in
// progress or already confirmed fails with AlreadyInUse.
func (s *Service) Start(ctx context.Context, req StartRequest) (*transaction.Transaction, error) {
	if err := request.Validate(req); err != nil {
		return nil, err
	}
	placed, err := s.transactions.FindConfirmedByOrderNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := req.Expires
	if expires.IsZero() {
		expires = now.Add(s.cfg.DefaultExpiry)
	}
	tx, err := transaction.New(transaction.KindReturnOrder, req.Agent, placed.Seller, transaction.Object{
		ReturnTarget: &transaction.ReturnTarget{
			TransactionID: placed.ID,
			OrderNumber:   req.OrderNumber,
		},
	}, expires, now)
	if err != nil {
		return nil, err
	}
	if err := s.transactions.Start(ctx, tx); err != nil {
		return nil, err
	}

	s.countTransaction(tx.Status)
	s.logger.Info().Str("transaction_id", tx.ID.String()).Str("order_number", req.OrderNumber).Msg("return started")
	return tx, nil
}

// Confirm confirms the return. Refunds and notices run later as tasks.
func (s *Service) Confirm(ctx context.Context, callerID string, transactionID uuid.UUID) (_ *transaction.Transaction, err error) {
	ctx, span := observability.StartSpan(ctx, "returnorder.confirm",
		attribute.String("transaction_id", transactionID.String()),
	)
	defer func() {
		observability.EndSpan(span, err)
		s.countConfirm(err)
	}()

	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindReturnOrder, transactionID)
	if err != nil {
		return nil, err
	}
	if err := tx.RequireAgent(callerID); err != nil {
		return nil, err
	}
	target := tx.Object.ReturnTarget
	placed, err := s.transactions.FindByID(ctx, transaction.KindPlaceOrder, target.TransactionID)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.transactions.Confirm(ctx, transaction.ConfirmParams{
		Kind:             transaction.KindReturnOrder,
		ID:               tx.ID,
		Result:           transaction.Result{Order: placed.Result.Order},
		PotentialActions: returnActions(tx, placed),
	})
	if err != nil {
		return nil, err
	}

	s.countTransaction(confirmed.Status)
	s.logger.Info().Str("transaction_id", tx.ID.String()).Str("order_number", target.OrderNumber).Msg("return confirmed")
	return confirmed, nil
}

// returnActions mirrors every PayAction of the placed order as a
// RefundAction, each followed by a refund notice.
func returnActions(tx, placed *transaction.Transaction) []action.Attributes {
	orderNumber := tx.Object.ReturnTarget.OrderNumber
	customer := placed.Agent
	seller := action.Participant{Type: action.Organization, ID: placed.Seller.ID, Name: placed.Seller.Name}
	orderObject := action.OrderObject{OrderNumber: orderNumber, TransactionID: placed.ID}
	purpose := action.OrderPurpose(orderNumber)

	var refunds []action.Attributes
	for _, a := range placed.PotentialActions {
		for _, follow := range a.PotentialActions {
			if follow.Kind != action.KindPay {
				continue
			}
			refunds = append(refunds, action.Attributes{
				Kind:      action.KindRefund,
				Agent:     seller,
				Recipient: customer,
				Object:    follow.Object,
				Purpose:   purpose,
				PotentialActions: []action.Attributes{{
					Kind:      action.KindSend,
					Agent:     seller,
					Recipient: customer,
					Object:    orderObject,
					Purpose:   purpose,
				}},
			})
		}
	}

	return []action.Attributes{{
		Kind:             action.KindReturn,
		Agent:            tx.Agent,
		Recipient:        seller,
		Object:           orderObject,
		Purpose:          tx.Purpose(),
		PotentialActions: refunds,
	}}
}

func (s *Service) countTransaction(status transaction.Status) {
	if s.metrics != nil {
		s.metrics.TransactionsTotal.WithLabelValues(string(transaction.KindReturnOrder), string(status)).Inc()
	}
}

func (s *Service) countConfirm(err error) {
	if s.metrics == nil {
		return
	}
	result := "confirmed"
	if err != nil {
		result = domainErrors.CodeOf(err)
	}
	s.metrics.ConfirmTotal.WithLabelValues(string(transaction.KindReturnOrder), result).Inc()
}
