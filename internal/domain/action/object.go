package action

import (
	"time"

	"github.com/google/uuid"
)

// ObjectType tags the closed set of object and result variants.
type ObjectType string

const (
	ObjectCreditCard      ObjectType = "CreditCard"
	ObjectPointAccount    ObjectType = "PointAccount"
	ObjectSeatReservation ObjectType = "SeatReservation"
	ObjectMenuItem        ObjectType = "MenuItem"
	ObjectPayment         ObjectType = "Payment"
	ObjectReservation     ObjectType = "Reservation"
	ObjectOrder           ObjectType = "Order"
)

// Object is the request payload of an action.
type Object interface {
	ObjectType() ObjectType
}

// Result is the outcome recorded when an action completes.
type Result interface {
	ObjectType() ObjectType
}

// AuthorizeResult is implemented by every authorize result variant.
type AuthorizeResult interface {
	Result
	AuthorizedPrice() int64
}

// TradeStatus is the credit card gateway trade status.
type TradeStatus string

const (
	TradeUnprocessed TradeStatus = "UNPROCESSED"
	TradeAuth        TradeStatus = "AUTH"
	TradeSales       TradeStatus = "SALES"
	TradeVoid        TradeStatus = "VOID"
)

// --- Authorize objects ---

type CreditCardObject struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

func (CreditCardObject) ObjectType() ObjectType { return ObjectCreditCard }

type PointAccountObject struct {
	AccountNumber string `json:"accountNumber"`
	Amount        int64  `json:"amount"`
	Notes         string `json:"notes,omitempty"`
}

func (PointAccountObject) ObjectType() ObjectType { return ObjectPointAccount }

// SeatOffer is one requested seat.
type SeatOffer struct {
	SeatSection    string `json:"seatSection" validate:"required"`
	SeatNumber     string `json:"seatNumber" validate:"required"`
	TicketTypeCode string `json:"ticketTypeCode" validate:"required"`
	Price          int64  `json:"price" validate:"gte=0"`
	Discount       int64  `json:"discount,omitempty" validate:"gte=0,ltefield=Price"`
}

type SeatReservationObject struct {
	EventID string      `json:"eventId"`
	Offers  []SeatOffer `json:"offers"`
}

func (SeatReservationObject) ObjectType() ObjectType { return ObjectSeatReservation }

// MenuItemOffer is one requested menu item line.
type MenuItemOffer struct {
	ItemCode  string `json:"itemCode" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	Discount  int64  `json:"discount,omitempty" validate:"gte=0"`
}

type MenuItemObject struct {
	EventID string          `json:"eventId"`
	Items   []MenuItemOffer `json:"items"`
}

func (MenuItemObject) ObjectType() ObjectType { return ObjectMenuItem }

// --- Follow-up objects ---

// PaymentObject is the object of pay and refund actions.
type PaymentObject struct {
	Method            ObjectType `json:"method"`
	PaymentMethodID   string     `json:"paymentMethodId"`
	Price             int64      `json:"price"`
	AuthorizeActionID uuid.UUID  `json:"authorizeActionId"`
	OrderNumber       string     `json:"orderNumber"`
	// credit card
	AccessID   string `json:"accessId,omitempty"`
	AccessPass string `json:"accessPass,omitempty"`
	// point account
	PendingTransactionID string `json:"pendingTransactionId,omitempty"`
	AccountNumber        string `json:"accountNumber,omitempty"`
}

func (PaymentObject) ObjectType() ObjectType { return ObjectPayment }

// ReservationObject is the object of the action releasing a seat or menu
// item reservation.
type ReservationObject struct {
	Method            ObjectType `json:"method"`
	ReservationRef    string     `json:"reservationRef"`
	EventID           string     `json:"eventId"`
	AuthorizeActionID uuid.UUID  `json:"authorizeActionId"`
}

func (ReservationObject) ObjectType() ObjectType { return ObjectReservation }

// OrderObject references an order by number.
type OrderObject struct {
	OrderNumber   string    `json:"orderNumber"`
	TransactionID uuid.UUID `json:"transactionId"`
}

func (OrderObject) ObjectType() ObjectType { return ObjectOrder }

// --- Results ---

type CreditCardResult struct {
	Price       int64       `json:"price"`
	OrderID     string      `json:"orderId"`
	AccessID    string      `json:"accessId"`
	AccessPass  string      `json:"accessPass"`
	TranID      string      `json:"tranId,omitempty"`
	TradeStatus TradeStatus `json:"tradeStatus"`
}

func (CreditCardResult) ObjectType() ObjectType  { return ObjectCreditCard }
func (r CreditCardResult) AuthorizedPrice() int64 { return r.Price }

type PointAccountResult struct {
	Price                int64  `json:"price"`
	AccountNumber        string `json:"accountNumber"`
	PendingTransactionID string `json:"pendingTransactionId"`
}

func (PointAccountResult) ObjectType() ObjectType  { return ObjectPointAccount }
func (r PointAccountResult) AuthorizedPrice() int64 { return r.Price }

// Event is the scheduled event a reservation belongs to.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VenueCode string    `json:"venueCode"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// ReservedSeat is a seat held by the inventory service.
type ReservedSeat struct {
	SeatSection    string `json:"seatSection"`
	SeatNumber     string `json:"seatNumber"`
	TicketTypeCode string `json:"ticketTypeCode"`
	TicketName     string `json:"ticketName,omitempty"`
	Price          int64  `json:"price"`
	Discount       int64  `json:"discount,omitempty"`
}

type SeatReservationResult struct {
	Price          int64          `json:"price"`
	ReservationRef string         `json:"reservationRef"`
	Event          Event          `json:"event"`
	Seats          []ReservedSeat `json:"seats"`
}

func (SeatReservationResult) ObjectType() ObjectType  { return ObjectSeatReservation }
func (r SeatReservationResult) AuthorizedPrice() int64 { return r.Price }

// ReservedMenuItem is a menu item line held by the inventory service.
type ReservedMenuItem struct {
	ItemCode  string `json:"itemCode"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Discount  int64  `json:"discount,omitempty"`
}

type MenuItemResult struct {
	Price          int64              `json:"price"`
	ReservationRef string             `json:"reservationRef"`
	Event          Event              `json:"event"`
	Items          []ReservedMenuItem `json:"items"`
}

func (MenuItemResult) ObjectType() ObjectType  { return ObjectMenuItem }
func (r MenuItemResult) AuthorizedPrice() int64 { return r.Price }

// PaymentResult records the gateway state after a pay or refund action.
type PaymentResult struct {
	TradeStatus   TradeStatus `json:"tradeStatus,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`
	// NoOp is set when the gateway was already in the target state.
	NoOp bool `json:"noOp,omitempty"`
}

func (PaymentResult) ObjectType() ObjectType { return ObjectPayment }

// ReservationResult records a released reservation.
type ReservationResult struct {
	ReservationRef string `json:"reservationRef"`
}

func (ReservationResult) ObjectType() ObjectType { return ObjectReservation }

// OrderResult records the outcome of send and return actions.
type OrderResult struct {
	MessageID string `json:"messageId,omitempty"`
}

func (OrderResult) ObjectType() ObjectType { return ObjectOrder }
