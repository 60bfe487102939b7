package placeorder

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type ConfirmRequest struct {
	CallerID      string
	TransactionID uuid.UUID
	// OrderDate defaults to now.
	OrderDate time.Time
}

// Confirm freezes the completed authorizations of an InProgress transaction
// into an order. Of concurrent confirms of one transaction exactly one
// succeeds; the others see NotFound.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (_ *order.Order, err error) {
	ctx, span := observability.StartSpan(ctx, "placeorder.confirm",
		attribute.String("transaction_id", req.TransactionID.String()),
	)
	defer func() {
		observability.EndSpan(span, err)
		s.countConfirm(err)
	}()

	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindPlaceOrder, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := tx.RequireAgent(req.CallerID); err != nil {
		return nil, err
	}
	if tx.Object.CustomerContact == nil {
		return nil, domainErrors.NotFound("customer contact")
	}

	now := s.now()
	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}

	all, err := s.actions.FindAuthorizeByTransactionID(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	authorizations := action.CompletedBefore(all, now)
	if err := ValidateTransaction(tx, authorizations); err != nil {
		return nil, err
	}
	_, event, err := reservationGroup(authorizations)
	if err != nil {
		return nil, err
	}

	orderNumber, err := s.orderNumbers.Publish(ctx, tx.Seller.VenueCode, orderDate)
	if err != nil {
		return nil, err
	}
	confirmationNumber, err := s.confirmationNumbers.Publish(ctx, event.ID, event.EndDate)
	if err != nil {
		return nil, err
	}

	o, err := CreateOrder(tx, OrderInput{
		Authorizations:     authorizations,
		OrderNumber:        orderNumber,
		ConfirmationNumber: confirmationNumber,
		OrderDate:          orderDate,
		NewToken:           s.newToken,
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := s.transactions.Confirm(ctx, transaction.ConfirmParams{
		Kind:             transaction.KindPlaceOrder,
		ID:               tx.ID,
		AuthorizeActions: authorizations,
		Result: transaction.Result{
			Order:          *o,
			OwnershipInfos: CreateOwnershipInfos(o, now),
		},
		PotentialActions: potentialActions(tx, o, authorizations),
	})
	if err != nil {
		return nil, err
	}

	s.countTransaction(confirmed.Status)
	span.SetAttributes(attribute.String("order_number", o.OrderNumber))
	s.logger.Info().
		Str("transaction_id", tx.ID.String()).
		Str("order_number", o.OrderNumber).
		Int64("price", o.Price).
		Int("offers", len(o.AcceptedOffers)).
		Msg("order confirmed")
	return &confirmed.Result.Order, nil
}

func (s *Service) countConfirm(err error) {
	if s.metrics == nil {
		return
	}
	result := "confirmed"
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrNotFound):
		result = "not_found"
	default:
		result = domainErrors.CodeOf(err)
	}
	s.metrics.ConfirmTotal.WithLabelValues(string(transaction.KindPlaceOrder), result).Inc()
}
