package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/cassiomorais/ordercore/internal/application/placeorder"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/rs/zerolog"
)

// Env wires every in-memory store and gateway around one clock.
type Env struct {
	Clock        *Clock
	Transactions *TransactionStore
	Actions      *ActionStore
	Tasks        *TaskStore
	Orders       *OrderStore
	Ownerships   *OwnershipStore
	Gateways     *gateways.Set
	Mocks        *gateways.Mocks
	PlaceOrder   *placeorder.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	clock := NewClock(BaseTime)
	transactions := NewTransactionStore(clock)
	actions := NewActionStore(clock)
	orderNumbers, confirmationNumbers, _ := Sequences(t)
	set, mocks := Gateways()

	return &Env{
		Clock:        clock,
		Transactions: transactions,
		Actions:      actions,
		Tasks:        NewTaskStore(clock),
		Orders:       NewOrderStore(),
		Ownerships:   NewOwnershipStore(),
		Gateways:     set,
		Mocks:        mocks,
		PlaceOrder: placeorder.NewService(transactions, actions, orderNumbers, confirmationNumbers,
			config.TransactionConfig{DefaultExpiry: 15 * time.Minute, MaxExpiry: time.Hour},
			zerolog.Nop(),
			placeorder.WithClock(clock.Now),
		),
	}
}

// Purchase describes an order placed through the real authorizers.
type Purchase struct {
	Seats      []string
	SeatPrice  int64
	CardAmount int64
	Points     int64
}

// StartWithAuthorizations starts a transaction and authorizes the purchase
// without confirming it.
func (e *Env) StartWithAuthorizations(t *testing.T, p Purchase) *transaction.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := e.PlaceOrder.Start(ctx, placeorder.StartRequest{Agent: Customer(), Seller: Seller()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.PlaceOrder.SetCustomerContact(ctx, AgentID, tx.ID, Contact()); err != nil {
		t.Fatalf("set contact: %v", err)
	}

	if len(p.Seats) > 0 {
		offers := make([]action.SeatOffer, 0, len(p.Seats))
		for _, number := range p.Seats {
			offers = append(offers, action.SeatOffer{SeatSection: "A", SeatNumber: number, TicketTypeCode: "ADULT", Price: p.SeatPrice})
		}
		_, err := placeorder.NewReservationAuthorizer(e.PlaceOrder, e.Gateways.Inventory).AuthorizeSeats(ctx, placeorder.SeatReservationRequest{
			CallerID: AgentID, TransactionID: tx.ID, EventID: EventID, Offers: offers,
		})
		if err != nil {
			t.Fatalf("authorize seats: %v", err)
		}
	}
	if p.CardAmount > 0 {
		_, err := placeorder.NewCreditCardAuthorizer(e.PlaceOrder, e.Gateways.CreditCard).Authorize(ctx, placeorder.CreditCardRequest{
			CallerID: AgentID, TransactionID: tx.ID, Amount: p.CardAmount, Method: "1", CardToken: "tok_visa",
		})
		if err != nil {
			t.Fatalf("authorize credit card: %v", err)
		}
	}
	if p.Points > 0 {
		_, err := placeorder.NewPointAccountAuthorizer(e.PlaceOrder, e.Gateways.PointAccount).Authorize(ctx, placeorder.PointAccountRequest{
			CallerID: AgentID, TransactionID: tx.ID, AccountNumber: PointAccountNumber, Amount: p.Points,
		})
		if err != nil {
			t.Fatalf("authorize points: %v", err)
		}
	}
	return tx
}

// Confirmed places and confirms an order and returns the stored transaction.
func (e *Env) Confirmed(t *testing.T, p Purchase) *transaction.Transaction {
	t.Helper()
	tx := e.StartWithAuthorizations(t, p)
	e.Clock.Advance(time.Second)
	if _, err := e.PlaceOrder.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: AgentID, TransactionID: tx.ID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return e.Transactions.Get(tx.ID)
}
