package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the order delivery status
type Status string

const (
	StatusProcessing Status = "OrderProcessing"
	StatusDelivered  Status = "OrderDelivered"
	StatusReturned   Status = "OrderReturned"
)

// ItemType distinguishes seat reservations from menu item reservations.
type ItemType string

const (
	ItemEventReservation    ItemType = "EventReservation"
	ItemMenuItemReservation ItemType = "MenuItemReservation"
)

// PaymentMethodType represents the gateway a payment method was authorized on.
type PaymentMethodType string

const (
	PaymentCreditCard   PaymentMethodType = "CreditCard"
	PaymentPointAccount PaymentMethodType = "PointAccount"
)

// PriceCurrency is the only currency orders are priced in.
const PriceCurrency = "JPY"

// Customer is the buyer as it appears on the order.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
}

// Seller is the organization as it appears on the order.
type Seller struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VenueCode string `json:"venueCode"`
}

// Event is the scheduled event an offer is reserved for.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VenueCode string    `json:"venueCode"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// AcceptedOffer is one reserved item of the order.
type AcceptedOffer struct {
	ItemType          ItemType `json:"itemType"`
	ReservationNumber string   `json:"reservationNumber"`
	TicketToken       string   `json:"ticketToken"`
	ReservationFor    Event    `json:"reservationFor"`
	UnderName         Customer `json:"underName"`
	// seat reservation
	SeatSection    string `json:"seatSection,omitempty"`
	SeatNumber     string `json:"seatNumber,omitempty"`
	TicketTypeCode string `json:"ticketTypeCode,omitempty"`
	TicketName     string `json:"ticketName,omitempty"`
	// menu item reservation
	ItemCode string `json:"itemCode,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	Price    int64 `json:"price"`
	Discount int64 `json:"discount,omitempty"`
}

// PaymentMethod is one completed non-reservation authorization.
type PaymentMethod struct {
	Type              PaymentMethodType `json:"typeOf"`
	Name              string            `json:"name"`
	PaymentMethodID   string            `json:"paymentMethodId"`
	Price             int64             `json:"price"`
	AuthorizeActionID uuid.UUID         `json:"authorizeActionId"`
}

// InquiryKey lets a customer look the order up without an account.
type InquiryKey struct {
	VenueCode          string `json:"venueCode"`
	ConfirmationNumber int64  `json:"confirmationNumber"`
	Telephone          string `json:"telephone"`
}

// Order represents a confirmed order. It is derived once at confirmation
// and only its Status changes afterwards.
type Order struct {
	OrderNumber        string          `json:"orderNumber"`
	ConfirmationNumber int64           `json:"confirmationNumber"`
	Status             Status          `json:"orderStatus"`
	Seller             Seller          `json:"seller"`
	Customer           Customer        `json:"customer"`
	AcceptedOffers     []AcceptedOffer `json:"acceptedOffers"`
	PaymentMethods     []PaymentMethod `json:"paymentMethods"`
	Price              int64           `json:"price"`
	PriceCurrency      string          `json:"priceCurrency"`
	Discounts          int64           `json:"discounts,omitempty"`
	OrderInquiryKey    InquiryKey      `json:"orderInquiryKey"`
	OrderDate          time.Time       `json:"orderDate"`
}

// TotalPrice sums offer prices minus discounts.
func TotalPrice(offers []AcceptedOffer) (price, discounts int64) {
	for _, o := range offers {
		price += o.Price
		discounts += o.Discount
	}
	return price - discounts, discounts
}

// PaymentTotal sums payment method prices.
func (o *Order) PaymentTotal() int64 {
	var total int64
	for _, pm := range o.PaymentMethods {
		total += pm.Price
	}
	return total
}

var transitions = map[Status][]Status{
	StatusProcessing: {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned},
	StatusReturned:   {}, // Terminal state
}

// CanTransitionTo checks if the order can move to the given status
func (o *Order) CanTransitionTo(newStatus Status) bool {
	for _, allowed := range transitions[o.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// AllowedFrom lists the statuses that may move to newStatus.
func AllowedFrom(newStatus Status) []Status {
	var from []Status
	for _, s := range []Status{StatusProcessing, StatusDelivered, StatusReturned} {
		o := Order{Status: s}
		if o.CanTransitionTo(newStatus) {
			from = append(from, s)
		}
	}
	return from
}

// OwnershipInfo records a customer's rights to one accepted offer.
type OwnershipInfo struct {
	ID           uuid.UUID `json:"id"`
	Identifier   string    `json:"identifier"`
	OrderNumber  string    `json:"orderNumber"`
	OwnedBy      Customer  `json:"ownedBy"`
	AcquiredFrom Seller    `json:"acquiredFrom"`
	OwnedFrom    time.Time `json:"ownedFrom"`
	OwnedThrough time.Time `json:"ownedThrough"`
	TypeOfGood   Good      `json:"typeOfGood"`
}

// Good is the owned item.
type Good struct {
	ItemType          ItemType `json:"itemType"`
	TicketToken       string   `json:"ticketToken"`
	ReservationNumber string   `json:"reservationNumber"`
}

// NewOwnershipInfo derives the ownership record of one accepted offer.
func NewOwnershipInfo(o *Order, offer AcceptedOffer, ownedFrom time.Time) OwnershipInfo {
	return OwnershipInfo{
		ID:           uuid.New(),
		Identifier:   OwnershipIdentifier(o.OrderNumber, offer.TicketToken),
		OrderNumber:  o.OrderNumber,
		OwnedBy:      o.Customer,
		AcquiredFrom: o.Seller,
		OwnedFrom:    ownedFrom,
		OwnedThrough: offer.ReservationFor.EndDate,
		TypeOfGood: Good{
			ItemType:          offer.ItemType,
			TicketToken:       offer.TicketToken,
			ReservationNumber: offer.ReservationNumber,
		},
	}
}

// OwnershipIdentifier is the natural key of an ownership record.
func OwnershipIdentifier(orderNumber, ticketToken string) string {
	return fmt.Sprintf("%s-%s", orderNumber, ticketToken)
}
