package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
)

const (
	VenueCode = "118"
	EventID   = "ev-118-20261020-1900"
	SellerID  = "seller-118"
	AgentID   = "customer-1"

	PointAccountNumber = "pt-000123"
)

// BaseTime is a fixed instant all fixtures are relative to.
var BaseTime = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func Customer() action.Participant {
	return action.Participant{Type: action.Person, ID: AgentID, Name: "Sato Hanako"}
}

func Seller() transaction.Seller {
	return transaction.Seller{ID: SellerID, Name: "Cinema 118", VenueCode: VenueCode}
}

func SellerParticipant() action.Participant {
	return action.Participant{Type: action.Organization, ID: SellerID, Name: "Cinema 118"}
}

func Contact() transaction.CustomerContact {
	return transaction.CustomerContact{
		GivenName:  "Hanako",
		FamilyName: "Sato",
		Email:      "hanako@example.com",
		Telephone:  "+819012345678",
	}
}

func Event() action.Event {
	return action.Event{
		ID:        EventID,
		Name:      "Late Show",
		VenueCode: VenueCode,
		StartDate: BaseTime.Add(48 * time.Hour),
		EndDate:   BaseTime.Add(50 * time.Hour),
	}
}

// NewInProgress builds an InProgress PlaceOrder transaction expiring in ten minutes.
func NewInProgress(now time.Time) *transaction.Transaction {
	tx, err := transaction.New(transaction.KindPlaceOrder, Customer(), Seller(), transaction.Object{}, now.Add(10*time.Minute), now)
	if err != nil {
		panic(err)
	}
	return tx
}

// Sequences returns sequence generators backed by an in-memory redis.
func Sequences(t *testing.T) (*infraRedis.OrderNumberGenerator, *infraRedis.ConfirmationNumberGenerator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return infraRedis.NewOrderNumberGenerator(client, "ordercore", loc),
		infraRedis.NewConfirmationNumberGenerator(client, "ordercore"),
		mr
}

// MockTransactionManager runs fn directly, or WithTransactionFunc when set.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}
