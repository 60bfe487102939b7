package placeorder

import (
	"context"
	"fmt"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/google/uuid"
)

// SeatReservationRequest holds seats of one event.
type SeatReservationRequest struct {
	CallerID      string             `validate:"required"`
	TransactionID uuid.UUID          `validate:"required"`
	EventID       string             `validate:"required"`
	Offers        []action.SeatOffer `validate:"required,min=1,dive"`
}

// MenuItemRequest holds menu items sold for one event.
type MenuItemRequest struct {
	CallerID      string                 `validate:"required"`
	TransactionID uuid.UUID              `validate:"required"`
	EventID       string                 `validate:"required"`
	Items         []action.MenuItemOffer `validate:"required,min=1,dive"`
}

// ReservationAuthorizer holds inventory on behalf of the seller. The seller
// is the agent of these actions and the customer their recipient.
type ReservationAuthorizer struct {
	svc       *Service
	inventory gateways.InventoryService
}

func NewReservationAuthorizer(svc *Service, inventory gateways.InventoryService) *ReservationAuthorizer {
	return &ReservationAuthorizer{svc: svc, inventory: inventory}
}

// AuthorizeSeats holds seats. The recorded price is the sum of seat prices
// net of discounts.
func (r *ReservationAuthorizer) AuthorizeSeats(ctx context.Context, req SeatReservationRequest) (*action.Action, error) {
	return authorize(ctx, r.svc, authorization[action.SeatReservationResult]{
		callerID:      req.CallerID,
		transactionID: req.TransactionID,
		objectType:    action.ObjectSeatReservation,
		request:       req,
		attrs: func(_ context.Context, tx *transaction.Transaction) (action.Attributes, error) {
			return action.Attributes{
				Agent:     sellerParticipant(tx),
				Recipient: tx.Agent,
				Object:    action.SeatReservationObject{EventID: req.EventID, Offers: req.Offers},
			}, nil
		},
		call: func(ctx context.Context, tx *transaction.Transaction, a *action.Action) (action.SeatReservationResult, error) {
			held, err := r.inventory.ReserveSeats(ctx, gateways.SeatReservationRequest{
				VenueCode: tx.Seller.VenueCode,
				EventID:   req.EventID,
				Offers:    req.Offers,
			})
			if err != nil {
				return action.SeatReservationResult{}, err
			}
			var price int64
			for _, s := range held.Seats {
				price += s.Price - s.Discount
			}
			return action.SeatReservationResult{
				Price:          price,
				ReservationRef: held.Ref,
				Event:          held.Event,
				Seats:          held.Seats,
			}, nil
		},
		release: func(ctx context.Context, res action.SeatReservationResult) error {
			return r.inventory.ReleaseSeats(ctx, res.ReservationRef)
		},
	})
}

// CancelSeats cancels a seat authorization. Seats of a completed
// authorization are always released.
func (r *ReservationAuthorizer) CancelSeats(ctx context.Context, callerID string, transactionID, actionID uuid.UUID) error {
	return r.svc.cancelAuthorization(ctx, callerID, transactionID, actionID, action.ObjectSeatReservation,
		func(ctx context.Context, prev *action.Action) error {
			res, ok := prev.Result.(action.SeatReservationResult)
			if !ok {
				return fmt.Errorf("action %s has no seat reservation result", prev.ID)
			}
			return r.inventory.ReleaseSeats(ctx, res.ReservationRef)
		})
}

// AuthorizeMenuItems holds menu items. The recorded price is the sum of line
// totals net of discounts.
func (r *ReservationAuthorizer) AuthorizeMenuItems(ctx context.Context, req MenuItemRequest) (*action.Action, error) {
	return authorize(ctx, r.svc, authorization[action.MenuItemResult]{
		callerID:      req.CallerID,
		transactionID: req.TransactionID,
		objectType:    action.ObjectMenuItem,
		request:       req,
		attrs: func(_ context.Context, tx *transaction.Transaction) (action.Attributes, error) {
			return action.Attributes{
				Agent:     sellerParticipant(tx),
				Recipient: tx.Agent,
				Object:    action.MenuItemObject{EventID: req.EventID, Items: req.Items},
			}, nil
		},
		call: func(ctx context.Context, tx *transaction.Transaction, a *action.Action) (action.MenuItemResult, error) {
			held, err := r.inventory.ReserveMenuItems(ctx, gateways.MenuItemReservationRequest{
				VenueCode: tx.Seller.VenueCode,
				EventID:   req.EventID,
				Items:     req.Items,
			})
			if err != nil {
				return action.MenuItemResult{}, err
			}
			var price int64
			for _, it := range held.Items {
				price += it.UnitPrice*int64(it.Quantity) - it.Discount
			}
			return action.MenuItemResult{
				Price:          price,
				ReservationRef: held.Ref,
				Event:          held.Event,
				Items:          held.Items,
			}, nil
		},
		release: func(ctx context.Context, res action.MenuItemResult) error {
			return r.inventory.ReleaseMenuItems(ctx, res.ReservationRef)
		},
	})
}

// CancelMenuItems cancels a menu item authorization and returns its stock.
func (r *ReservationAuthorizer) CancelMenuItems(ctx context.Context, callerID string, transactionID, actionID uuid.UUID) error {
	return r.svc.cancelAuthorization(ctx, callerID, transactionID, actionID, action.ObjectMenuItem,
		func(ctx context.Context, prev *action.Action) error {
			res, ok := prev.Result.(action.MenuItemResult)
			if !ok {
				return fmt.Errorf("action %s has no menu item result", prev.ID)
			}
			return r.inventory.ReleaseMenuItems(ctx, res.ReservationRef)
		})
}
