// Package gateways holds the contracts of the external systems the order
// core coordinates, a circuit-breaker guard for calling them, and stateful
// in-memory implementations used by the worker in development and by tests.
package gateways

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/order"
)

var (
	// ErrDuplicateOrderID is returned by the credit card gateway when an
	// order id was already entered.
	ErrDuplicateOrderID = errors.New("duplicate gateway order id")
	// ErrThrottled is returned by any gateway that rejects a call for rate limiting.
	ErrThrottled = errors.New("throttled")
	// ErrRejected is an unclassified gateway failure.
	ErrRejected = errors.New("rejected")
)

// JobCode selects what a credit card trade operation does.
type JobCode string

const (
	JobAuth  JobCode = "AUTH"
	JobSales JobCode = "SALES"
	JobVoid  JobCode = "VOID"
)

type EntryTranRequest struct {
	OrderID string
	JobCd   JobCode
	Amount  int64
}

type EntryTranResult struct {
	AccessID   string
	AccessPass string
}

type ExecTranRequest struct {
	AccessID   string
	AccessPass string
	OrderID    string
	Method     string
	CardToken  string
}

type ExecTranResult struct {
	TranID string
}

type AlterTranRequest struct {
	AccessID   string
	AccessPass string
	JobCd      JobCode
	Amount     int64
}

type AlterTranResult struct {
	TranID string
	Status action.TradeStatus
}

// Trade is the gateway's current view of an order id.
type Trade struct {
	OrderID    string
	Status     action.TradeStatus
	AccessID   string
	AccessPass string
	Amount     int64
	TranID     string
}

// CreditCardGateway is the payment gateway client.
type CreditCardGateway interface {
	EntryTran(ctx context.Context, req EntryTranRequest) (*EntryTranResult, error)
	ExecTran(ctx context.Context, req ExecTranRequest) (*ExecTranResult, error)
	AlterTran(ctx context.Context, req AlterTranRequest) (*AlterTranResult, error)
	SearchTrade(ctx context.Context, orderID string) (*Trade, error)
}

// PendingKind is the kind of a point account transaction.
type PendingKind string

const (
	PendingPay      PendingKind = "Pay"
	PendingTransfer PendingKind = "Transfer"
)

type PayRequest struct {
	AccountNumber string
	Amount        int64
	Notes         string
	Recipient     string
}

type TransferRequest struct {
	ToAccountNumber string
	Amount          int64
	Notes           string
	Agent           string
}

// PendingTransaction is a point account transaction awaiting confirm or cancel.
type PendingTransaction struct {
	ID            string
	Kind          PendingKind
	AccountNumber string
	Amount        int64
	Expires       time.Time
}

// PointAccountService is the point account ledger client.
type PointAccountService interface {
	StartPay(ctx context.Context, req PayRequest) (*PendingTransaction, error)
	StartTransfer(ctx context.Context, req TransferRequest) (*PendingTransaction, error)
	Confirm(ctx context.Context, pendingID string) error
	Cancel(ctx context.Context, pendingID string) error
}

type SeatReservationRequest struct {
	VenueCode string
	EventID   string
	Offers    []action.SeatOffer
}

type SeatReservation struct {
	Ref   string
	Event action.Event
	Seats []action.ReservedSeat
}

type MenuItemReservationRequest struct {
	VenueCode string
	EventID   string
	Items     []action.MenuItemOffer
}

type MenuItemReservation struct {
	Ref   string
	Event action.Event
	Items []action.ReservedMenuItem
}

// InventoryService holds and releases tentative reservations.
type InventoryService interface {
	ReserveSeats(ctx context.Context, req SeatReservationRequest) (*SeatReservation, error)
	ReleaseSeats(ctx context.Context, ref string) error
	ReserveMenuItems(ctx context.Context, req MenuItemReservationRequest) (*MenuItemReservation, error)
	ReleaseMenuItems(ctx context.Context, ref string) error
}

// MessageKind tells the notifier which template to render.
type MessageKind string

const (
	MessageOrderConfirmed MessageKind = "OrderConfirmed"
	MessageOrderReturned  MessageKind = "OrderReturned"
)

// Message is a customer notification about an order.
type Message struct {
	Kind        MessageKind
	To          string
	OrderNumber string
	Order       *order.Order
}

// Notifier delivers customer notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
