package request

import (
	"testing"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatRequest struct {
	EventID string             `validate:"required"`
	Offers  []action.SeatOffer `validate:"required,min=1,dive"`
}

type menuRequest struct {
	Items []action.MenuItemOffer `validate:"required,min=1,dive"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        any
		wantField string
	}{
		{
			name: "valid contact",
			in:   transaction.CustomerContact{GivenName: "Hanako", FamilyName: "Sato", Email: "h@example.com", Telephone: "+819012345678"},
		},
		{
			name:      "bad email",
			in:        transaction.CustomerContact{GivenName: "Hanako", FamilyName: "Sato", Email: "nope", Telephone: "+819012345678"},
			wantField: "CustomerContact.Email",
		},
		{
			name:      "no offers",
			in:        seatRequest{EventID: "ev"},
			wantField: "seatRequest.Offers",
		},
		{
			name:      "discount above price",
			in:        seatRequest{EventID: "ev", Offers: []action.SeatOffer{{SeatSection: "A", SeatNumber: "1", TicketTypeCode: "ADULT", Price: 100, Discount: 200}}},
			wantField: "seatRequest.Offers[0].Discount",
		},
		{
			name: "menu discount within line total",
			in:   menuRequest{Items: []action.MenuItemOffer{{ItemCode: "BEER", Quantity: 3, UnitPrice: 100, Discount: 300}}},
		},
		{
			name:      "menu discount above line total",
			in:        menuRequest{Items: []action.MenuItemOffer{{ItemCode: "BEER", Quantity: 3, UnitPrice: 100, Discount: 301}}},
			wantField: "menuRequest.Items[0].Discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.ErrorIs(t, err, domainErrors.ErrArgument)
		})
	}
}
