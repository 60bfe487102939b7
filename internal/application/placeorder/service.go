package placeorder

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
)

// OrderNumberPublisher mints order numbers per venue and day.
type OrderNumberPublisher interface {
	Publish(ctx context.Context, venueCode string, orderDate time.Time) (string, error)
}

// ConfirmationNumberPublisher mints confirmation numbers per event.
type ConfirmationNumberPublisher interface {
	Publish(ctx context.Context, eventID string, eventEnd time.Time) (int64, error)
}

// Service drives PlaceOrder transactions from start to confirmation.
type Service struct {
	transactions        transaction.Repository
	actions             action.Repository
	orderNumbers        OrderNumberPublisher
	confirmationNumbers ConfirmationNumberPublisher
	cfg                 config.TransactionConfig
	loc                 *time.Location
	metrics             *observability.Metrics
	logger              zerolog.Logger
	now                 func() time.Time
	newToken            func() string
}

type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records transaction and action metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLocation sets the zone order dates and gateway order ids are counted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func NewService(
	transactions transaction.Repository,
	actions action.Repository,
	orderNumbers OrderNumberPublisher,
	confirmationNumbers ConfirmationNumberPublisher,
	cfg config.TransactionConfig,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		transactions:        transactions,
		actions:             actions,
		orderNumbers:        orderNumbers,
		confirmationNumbers: confirmationNumbers,
		cfg:                 cfg,
		loc:                 time.UTC,
		logger:              observability.Component(logger, "placeorder"),
		now:                 time.Now,
		newToken:            uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartRequest opens a PlaceOrder transaction.
type StartRequest struct {
	Agent         action.Participant
	Seller        transaction.Seller
	PassportToken string
	ClientUser    string
	// Expires defaults to now plus the configured default expiry.
	Expires time.Time
}

// Start creates an InProgress transaction. A reused passport token fails
// with AlreadyInUse.
func (s *Service) Start(ctx context.Context, req StartRequest) (*transaction.Transaction, error) {
	if req.Seller.VenueCode == "" {
		return nil, domainErrors.ArgumentNull("seller.venueCode")
	}
	now := s.now()
	expires := req.Expires
	if expires.IsZero() {
		expires = now.Add(s.cfg.DefaultExpiry)
	}
	if s.cfg.MaxExpiry > 0 && expires.After(now.Add(s.cfg.MaxExpiry)) {
		return nil, domainErrors.Argument("expires", "too far in the future")
	}

	tx, err := transaction.New(transaction.KindPlaceOrder, req.Agent, req.Seller, transaction.Object{
		PassportToken: req.PassportToken,
		ClientUser:    req.ClientUser,
	}, expires, now)
	if err != nil {
		return nil, err
	}
	if err := s.transactions.Start(ctx, tx); err != nil {
		return nil, err
	}

	s.countTransaction(tx.Status)
	s.logger.Info().Str("transaction_id", tx.ID.String()).Str("agent", tx.Agent.ID).Time("expires", tx.Expires).Msg("transaction started")
	return tx, nil
}

// SetCustomerContact stores the buyer contact on an InProgress transaction.
func (s *Service) SetCustomerContact(ctx context.Context, callerID string, transactionID uuid.UUID, contact transaction.CustomerContact) error {
	if err := request.Validate(contact); err != nil {
		return err
	}
	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindPlaceOrder, transactionID)
	if err != nil {
		return err
	}
	if err := tx.RequireAgent(callerID); err != nil {
		return err
	}
	return s.transactions.SetCustomerContact(ctx, transaction.KindPlaceOrder, transactionID, contact)
}

// Cancel abandons an InProgress transaction. Reversal of its authorizations
// is left to the exported cancel tasks.
func (s *Service) Cancel(ctx context.Context, callerID string, transactionID uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindPlaceOrder, transactionID)
	if err != nil {
		return nil, err
	}
	if err := tx.RequireAgent(callerID); err != nil {
		return nil, err
	}
	canceled, err := s.transactions.Cancel(ctx, transaction.KindPlaceOrder, transactionID)
	if err != nil {
		return nil, err
	}
	s.countTransaction(canceled.Status)
	return canceled, nil
}

func (s *Service) countTransaction(status transaction.Status) {
	if s.metrics != nil {
		s.metrics.TransactionsTotal.WithLabelValues(string(transaction.KindPlaceOrder), string(status)).Inc()
	}
}

func sellerParticipant(tx *transaction.Transaction) action.Participant {
	return action.Participant{Type: action.Organization, ID: tx.Seller.ID, Name: tx.Seller.Name}
}
