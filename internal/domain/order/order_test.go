package order_test

import (
	"testing"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/stretchr/testify/assert"
)

func TestTotalPrice(t *testing.T) {
	offers := []order.AcceptedOffer{
		{Price: 1800, Discount: 300},
		{Price: 1800},
		{Price: 1000, Discount: 100},
	}

	price, discounts := order.TotalPrice(offers)
	assert.Equal(t, int64(4200), price)
	assert.Equal(t, int64(400), discounts)
}

func TestPaymentTotal(t *testing.T) {
	o := order.Order{PaymentMethods: []order.PaymentMethod{{Price: 1000}, {Price: 500}}}
	assert.Equal(t, int64(1500), o.PaymentTotal())
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from     order.Status
		to       order.Status
		expected bool
	}{
		{order.StatusProcessing, order.StatusDelivered, true},
		{order.StatusProcessing, order.StatusReturned, true},
		{order.StatusDelivered, order.StatusReturned, true},
		{order.StatusDelivered, order.StatusProcessing, false},
		{order.StatusReturned, order.StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := order.Order{Status: tt.from}
			assert.Equal(t, tt.expected, o.CanTransitionTo(tt.to))
		})
	}
}

func TestAllowedFrom(t *testing.T) {
	assert.ElementsMatch(t, []order.Status{order.StatusProcessing, order.StatusDelivered}, order.AllowedFrom(order.StatusReturned))
	assert.Equal(t, []order.Status{order.StatusProcessing}, order.AllowedFrom(order.StatusDelivered))
	assert.Empty(t, order.AllowedFrom(order.StatusProcessing))
}

func TestNewOwnershipInfo(t *testing.T) {
	ownedFrom := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	eventEnd := time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC)
	o := &order.Order{
		OrderNumber: "TKY-261001-000001",
		Customer:    order.Customer{ID: "customer-1"},
		Seller:      order.Seller{ID: "seller-1"},
	}
	offer := order.AcceptedOffer{
		ItemType:          order.ItemEventReservation,
		TicketToken:       "tok-1",
		ReservationNumber: "R-1",
		ReservationFor:    order.Event{ID: "ev-1", EndDate: eventEnd},
	}

	info := order.NewOwnershipInfo(o, offer, ownedFrom)

	assert.Equal(t, "TKY-261001-000001-tok-1", info.Identifier)
	assert.Equal(t, ownedFrom, info.OwnedFrom)
	assert.Equal(t, eventEnd, info.OwnedThrough)
	assert.Equal(t, "customer-1", info.OwnedBy.ID)
	assert.Equal(t, "R-1", info.TypeOfGood.ReservationNumber)
}
