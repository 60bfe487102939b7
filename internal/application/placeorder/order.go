package placeorder

import (
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
)

var paymentMethodNames = map[action.ObjectType]string{
	action.ObjectCreditCard:   "Credit card",
	action.ObjectPointAccount: "Point account",
}

func isReservation(t action.ObjectType) bool {
	return t == action.ObjectSeatReservation || t == action.ObjectMenuItem
}

// ValidateTransaction checks the completed authorizations of a transaction
// before confirmation: at most one credit card, and what the customer pays
// must equal what the seller hands over.
func ValidateTransaction(tx *transaction.Transaction, authorizations []*action.Action) error {
	if n := len(action.OfType(authorizations, action.ObjectCreditCard)); n > 1 {
		return domainErrors.Argument("authorizeActions", "more than one credit card authorization")
	}

	var agentSide, sellerSide int64
	for _, a := range authorizations {
		r, ok := a.Result.(action.AuthorizeResult)
		if !ok {
			continue
		}
		switch a.Agent.ID {
		case tx.Agent.ID:
			agentSide += r.AuthorizedPrice()
		case tx.Seller.ID:
			sellerSide += r.AuthorizedPrice()
		}
	}
	if agentSide != sellerSide {
		return domainErrors.Argument("authorizeActions", "payment does not match the reserved price")
	}
	if agentSide <= 0 {
		return domainErrors.Argument("authorizeActions", "nothing to pay")
	}
	return nil
}

// reservationGroup returns the reservation type and event of the
// transaction. One order carries exactly one kind of reservation for one
// event.
func reservationGroup(authorizations []*action.Action) (action.ObjectType, action.Event, error) {
	var (
		group action.ObjectType
		event action.Event
	)
	for _, a := range authorizations {
		t := a.ObjectType()
		if !isReservation(t) {
			continue
		}
		var e action.Event
		switch r := a.Result.(type) {
		case action.SeatReservationResult:
			e = r.Event
		case action.MenuItemResult:
			e = r.Event
		}
		if group == "" {
			group, event = t, e
			continue
		}
		if group != t {
			return "", action.Event{}, domainErrors.NotImplemented("seat and menu item reservations in one order")
		}
		if event.ID != e.ID {
			return "", action.Event{}, domainErrors.NotImplemented("reservations for more than one event in one order")
		}
	}
	if group == "" {
		return "", action.Event{}, domainErrors.Argument("authorizeActions", "no reservation")
	}
	return group, event, nil
}

// OrderInput is everything CreateOrder needs besides the transaction.
type OrderInput struct {
	Authorizations     []*action.Action
	OrderNumber        string
	ConfirmationNumber int64
	OrderDate          time.Time
	// NewToken mints one ticket token per accepted offer.
	NewToken func() string
}

// CreateOrder derives the order from a transaction and its completed
// authorizations. It writes nothing.
func CreateOrder(tx *transaction.Transaction, in OrderInput) (*order.Order, error) {
	contact := tx.Object.CustomerContact
	if contact == nil {
		return nil, domainErrors.NotFound("customer contact")
	}
	if _, _, err := reservationGroup(in.Authorizations); err != nil {
		return nil, err
	}

	customer := order.Customer{
		ID:        tx.Agent.ID,
		Name:      contact.FamilyName + " " + contact.GivenName,
		Email:     contact.Email,
		Telephone: contact.Telephone,
	}
	o := &order.Order{
		OrderNumber:        in.OrderNumber,
		ConfirmationNumber: in.ConfirmationNumber,
		Status:             order.StatusProcessing,
		Seller: order.Seller{
			ID:        tx.Seller.ID,
			Name:      tx.Seller.Name,
			VenueCode: tx.Seller.VenueCode,
		},
		Customer:       customer,
		AcceptedOffers: []order.AcceptedOffer{},
		PaymentMethods: []order.PaymentMethod{},
		PriceCurrency:  order.PriceCurrency,
		OrderInquiryKey: order.InquiryKey{
			VenueCode:          tx.Seller.VenueCode,
			ConfirmationNumber: in.ConfirmationNumber,
			Telephone:          contact.Telephone,
		},
		OrderDate: in.OrderDate,
	}

	for _, a := range in.Authorizations {
		switch r := a.Result.(type) {
		case action.SeatReservationResult:
			for _, seat := range r.Seats {
				o.AcceptedOffers = append(o.AcceptedOffers, order.AcceptedOffer{
					ItemType:          order.ItemEventReservation,
					ReservationNumber: r.ReservationRef,
					TicketToken:       in.NewToken(),
					ReservationFor:    orderEvent(r.Event),
					UnderName:         customer,
					SeatSection:       seat.SeatSection,
					SeatNumber:        seat.SeatNumber,
					TicketTypeCode:    seat.TicketTypeCode,
					TicketName:        seat.TicketName,
					Price:             seat.Price,
					Discount:          seat.Discount,
				})
			}
		case action.MenuItemResult:
			for _, item := range r.Items {
				o.AcceptedOffers = append(o.AcceptedOffers, order.AcceptedOffer{
					ItemType:          order.ItemMenuItemReservation,
					ReservationNumber: r.ReservationRef,
					TicketToken:       in.NewToken(),
					ReservationFor:    orderEvent(r.Event),
					UnderName:         customer,
					ItemCode:          item.ItemCode,
					TicketName:        item.Name,
					Quantity:          item.Quantity,
					Price:             item.UnitPrice * int64(item.Quantity),
					Discount:          item.Discount,
				})
			}
		case action.CreditCardResult:
			o.PaymentMethods = append(o.PaymentMethods, order.PaymentMethod{
				Type:              order.PaymentCreditCard,
				Name:              paymentMethodNames[action.ObjectCreditCard],
				PaymentMethodID:   r.OrderID,
				Price:             r.Price,
				AuthorizeActionID: a.ID,
			})
		case action.PointAccountResult:
			o.PaymentMethods = append(o.PaymentMethods, order.PaymentMethod{
				Type:              order.PaymentPointAccount,
				Name:              paymentMethodNames[action.ObjectPointAccount],
				PaymentMethodID:   r.PendingTransactionID,
				Price:             r.Price,
				AuthorizeActionID: a.ID,
			})
		}
	}
	o.Price, o.Discounts = order.TotalPrice(o.AcceptedOffers)
	return o, nil
}

// CreateOwnershipInfos derives one ownership record per accepted offer.
func CreateOwnershipInfos(o *order.Order, ownedFrom time.Time) []order.OwnershipInfo {
	infos := make([]order.OwnershipInfo, 0, len(o.AcceptedOffers))
	for _, offer := range o.AcceptedOffers {
		infos = append(infos, order.NewOwnershipInfo(o, offer, ownedFrom))
	}
	return infos
}

// potentialActions builds the follow-up tree of a confirmed order: an
// OrderAction nesting one PayAction per payment method and the SendAction.
func potentialActions(tx *transaction.Transaction, o *order.Order, authorizations []*action.Action) []action.Attributes {
	customer := tx.Agent
	seller := sellerParticipant(tx)
	orderObject := action.OrderObject{OrderNumber: o.OrderNumber, TransactionID: tx.ID}
	purpose := action.OrderPurpose(o.OrderNumber)

	byID := make(map[string]*action.Action, len(authorizations))
	for _, a := range authorizations {
		byID[a.ID.String()] = a
	}

	followUps := make([]action.Attributes, 0, len(o.PaymentMethods)+1)
	for _, pm := range o.PaymentMethods {
		obj := action.PaymentObject{
			PaymentMethodID:   pm.PaymentMethodID,
			Price:             pm.Price,
			AuthorizeActionID: pm.AuthorizeActionID,
			OrderNumber:       o.OrderNumber,
		}
		if a, ok := byID[pm.AuthorizeActionID.String()]; ok {
			switch r := a.Result.(type) {
			case action.CreditCardResult:
				obj.Method = action.ObjectCreditCard
				obj.AccessID = r.AccessID
				obj.AccessPass = r.AccessPass
			case action.PointAccountResult:
				obj.Method = action.ObjectPointAccount
				obj.PendingTransactionID = r.PendingTransactionID
				obj.AccountNumber = r.AccountNumber
			}
		}
		followUps = append(followUps, action.Attributes{
			Kind:      action.KindPay,
			Agent:     customer,
			Recipient: seller,
			Object:    obj,
			Purpose:   purpose,
		})
	}
	followUps = append(followUps, action.Attributes{
		Kind:      action.KindSend,
		Agent:     seller,
		Recipient: customer,
		Object:    orderObject,
		Purpose:   purpose,
	})

	return []action.Attributes{{
		Kind:             action.KindOrder,
		Agent:            customer,
		Recipient:        seller,
		Object:           orderObject,
		Purpose:          tx.Purpose(),
		PotentialActions: followUps,
	}}
}

func orderEvent(e action.Event) order.Event {
	return order.Event{
		ID:        e.ID,
		Name:      e.Name,
		VenueCode: e.VenueCode,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
	}
}
