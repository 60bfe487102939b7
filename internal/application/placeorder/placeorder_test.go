package placeorder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/ordercore/internal/application/placeorder"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/cassiomorais/ordercore/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	clock        *testutil.Clock
	transactions *testutil.TransactionStore
	actions      *testutil.ActionStore
	mocks        *gateways.Mocks
	svc          *placeorder.Service
	cards        *placeorder.CreditCardAuthorizer
	points       *placeorder.PointAccountAuthorizer
	reservations *placeorder.ReservationAuthorizer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.NewClock(testutil.BaseTime)
	transactions := testutil.NewTransactionStore(clock)
	actions := testutil.NewActionStore(clock)
	orderNumbers, confirmationNumbers, _ := testutil.Sequences(t)
	set, mocks := testutil.Gateways()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	svc := placeorder.NewService(transactions, actions, orderNumbers, confirmationNumbers,
		config.TransactionConfig{DefaultExpiry: 15 * time.Minute, MaxExpiry: time.Hour},
		zerolog.Nop(),
		placeorder.WithClock(clock.Now),
		placeorder.WithLocation(tokyo),
	)
	return &harness{
		clock:        clock,
		transactions: transactions,
		actions:      actions,
		mocks:        mocks,
		svc:          svc,
		cards:        placeorder.NewCreditCardAuthorizer(svc, set.CreditCard),
		points:       placeorder.NewPointAccountAuthorizer(svc, set.PointAccount),
		reservations: placeorder.NewReservationAuthorizer(svc, set.Inventory),
	}
}

func (h *harness) start(t *testing.T) *transaction.Transaction {
	t.Helper()
	tx, err := h.svc.Start(context.Background(), placeorder.StartRequest{
		Agent:   testutil.Customer(),
		Seller:  testutil.Seller(),
		Expires: h.clock.Now().Add(10 * time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, h.svc.SetCustomerContact(context.Background(), testutil.AgentID, tx.ID, testutil.Contact()))
	return tx
}

func (h *harness) seat(t *testing.T, txID uuid.UUID, number string, price int64) *action.Action {
	t.Helper()
	a, err := h.reservations.AuthorizeSeats(context.Background(), placeorder.SeatReservationRequest{
		CallerID:      testutil.AgentID,
		TransactionID: txID,
		EventID:       testutil.EventID,
		Offers: []action.SeatOffer{
			{SeatSection: "A", SeatNumber: number, TicketTypeCode: "ADULT", Price: price},
		},
	})
	require.NoError(t, err)
	return a
}

func (h *harness) card(t *testing.T, txID uuid.UUID, amount int64) *action.Action {
	t.Helper()
	a, err := h.cards.Authorize(context.Background(), placeorder.CreditCardRequest{
		CallerID:      testutil.AgentID,
		TransactionID: txID,
		Amount:        amount,
		Method:        "1",
		CardToken:     "tok_visa",
	})
	require.NoError(t, err)
	return a
}

func TestConfirm_SeatAndCreditCard(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	assert.Equal(t, transaction.StatusInProgress, tx.Status)

	seat := h.seat(t, tx.ID, "1", 1000)
	assert.Equal(t, action.StatusCompleted, seat.Status)
	assert.Equal(t, int64(1000), seat.Result.(action.SeatReservationResult).Price)
	assert.Equal(t, testutil.SellerID, seat.Agent.ID)

	card := h.card(t, tx.ID, 1000)
	assert.Equal(t, action.StatusCompleted, card.Status)
	assert.Equal(t, action.TradeAuth, card.Result.(action.CreditCardResult).TradeStatus)

	h.clock.Advance(time.Second)
	o, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: testutil.AgentID, TransactionID: tx.ID})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), o.Price)
	assert.Equal(t, order.StatusProcessing, o.Status)
	require.Len(t, o.AcceptedOffers, 1)
	assert.Equal(t, "Sato Hanako", o.AcceptedOffers[0].UnderName.Name)
	assert.NotEmpty(t, o.AcceptedOffers[0].TicketToken)
	require.Len(t, o.PaymentMethods, 1)
	assert.Equal(t, order.PaymentCreditCard, o.PaymentMethods[0].Type)
	assert.Equal(t, card.ID, o.PaymentMethods[0].AuthorizeActionID)
	assert.Equal(t, "118-261018-000001", o.OrderNumber)
	assert.Equal(t, int64(1), o.ConfirmationNumber)
	assert.Equal(t, "+819012345678", o.OrderInquiryKey.Telephone)

	stored := h.transactions.Get(tx.ID)
	assert.Equal(t, transaction.StatusConfirmed, stored.Status)
	assert.Len(t, stored.Object.AuthorizeActions, 2)
	require.Len(t, stored.Result.OwnershipInfos, 1)
	assert.Equal(t, testutil.Event().EndDate, stored.Result.OwnershipInfos[0].OwnedThrough)

	require.Len(t, stored.PotentialActions, 1)
	orderAction := stored.PotentialActions[0]
	assert.Equal(t, action.KindOrder, orderAction.Kind)
	require.Len(t, orderAction.PotentialActions, 2)
	pay := orderAction.PotentialActions[0]
	assert.Equal(t, action.KindPay, pay.Kind)
	assert.Equal(t, action.ObjectCreditCard, pay.Object.(action.PaymentObject).Method)
	assert.Equal(t, action.KindSend, orderAction.PotentialActions[1].Kind)
}

func TestConfirm_PriceMismatch(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	h.seat(t, tx.ID, "1", 1000)
	h.card(t, tx.ID, 900)
	h.clock.Advance(time.Second)

	_, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: testutil.AgentID, TransactionID: tx.ID})
	assert.ErrorIs(t, err, domainErrors.ErrArgument)
	assert.Equal(t, transaction.StatusInProgress, h.transactions.Get(tx.ID).Status)
}

func TestConfirm_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, h *harness) (callerID string, txID uuid.UUID)
		expected error
	}{
		{
			name: "caller is not the agent",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				return "someone-else", h.start(t).ID
			},
			expected: domainErrors.ErrForbidden,
		},
		{
			name: "customer contact missing",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				tx, err := h.svc.Start(context.Background(), placeorder.StartRequest{Agent: testutil.Customer(), Seller: testutil.Seller()})
				require.NoError(t, err)
				return testutil.AgentID, tx.ID
			},
			expected: domainErrors.ErrNotFound,
		},
		{
			name: "no reservation",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				tx := h.start(t)
				h.card(t, tx.ID, 1000)
				return testutil.AgentID, tx.ID
			},
			expected: domainErrors.ErrArgument,
		},
		{
			name: "two credit cards",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				tx := h.start(t)
				h.seat(t, tx.ID, "1", 1000)
				h.card(t, tx.ID, 500)
				h.card(t, tx.ID, 500)
				return testutil.AgentID, tx.ID
			},
			expected: domainErrors.ErrArgument,
		},
		{
			name: "seats and menu items together",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				tx := h.start(t)
				h.seat(t, tx.ID, "1", 1000)
				_, err := h.reservations.AuthorizeMenuItems(context.Background(), placeorder.MenuItemRequest{
					CallerID:      testutil.AgentID,
					TransactionID: tx.ID,
					EventID:       testutil.EventID,
					Items:         []action.MenuItemOffer{{ItemCode: "POP", Quantity: 1, UnitPrice: 500}},
				})
				require.NoError(t, err)
				h.card(t, tx.ID, 1500)
				return testutil.AgentID, tx.ID
			},
			expected: domainErrors.ErrNotImplemented,
		},
		{
			name: "unknown transaction",
			setup: func(t *testing.T, h *harness) (string, uuid.UUID) {
				return testutil.AgentID, uuid.New()
			},
			expected: domainErrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			callerID, txID := tt.setup(t, h)
			h.clock.Advance(time.Second)

			_, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: callerID, TransactionID: txID})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestConfirm_IgnoresAuthorizationsCompletedAtConfirmTime(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	h.seat(t, tx.ID, "1", 1000)
	h.card(t, tx.ID, 1000)

	_, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: testutil.AgentID, TransactionID: tx.ID})
	assert.ErrorIs(t, err, domainErrors.ErrArgument)
}

func TestConfirm_ConcurrentCallsConfirmOnce(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	h.seat(t, tx.ID, "1", 1000)
	h.card(t, tx.ID, 1000)
	h.clock.Advance(time.Second)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: testutil.AgentID, TransactionID: tx.ID})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainErrors.ErrNotFound)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, transaction.StatusConfirmed, h.transactions.Get(tx.ID).Status)
}

func TestConfirm_PointAccountAndMenuItems(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)

	menu, err := h.reservations.AuthorizeMenuItems(context.Background(), placeorder.MenuItemRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		EventID:       testutil.EventID,
		Items: []action.MenuItemOffer{
			{ItemCode: "POP", Quantity: 2, UnitPrice: 500, Discount: 100},
			{ItemCode: "COLA", Quantity: 1, UnitPrice: 300},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), menu.Result.(action.MenuItemResult).Price)

	points, err := h.points.Authorize(context.Background(), placeorder.PointAccountRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		AccountNumber: testutil.PointAccountNumber,
		Amount:        1200,
	})
	require.NoError(t, err)
	h.clock.Advance(time.Second)

	o, err := h.svc.Confirm(context.Background(), placeorder.ConfirmRequest{CallerID: testutil.AgentID, TransactionID: tx.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), o.Price)
	assert.Equal(t, int64(100), o.Discounts)
	require.Len(t, o.AcceptedOffers, 2)
	assert.Equal(t, order.ItemMenuItemReservation, o.AcceptedOffers[0].ItemType)
	require.Len(t, o.PaymentMethods, 1)
	assert.Equal(t, points.Result.(action.PointAccountResult).PendingTransactionID, o.PaymentMethods[0].PaymentMethodID)
}

func TestAuthorize_RejectsBeforeStartingAction(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)

	_, err := h.cards.Authorize(context.Background(), placeorder.CreditCardRequest{
		CallerID: testutil.AgentID, TransactionID: tx.ID, Amount: 0, Method: "1", CardToken: "tok",
	})
	assert.ErrorIs(t, err, domainErrors.ErrArgument)

	_, err = h.cards.Authorize(context.Background(), placeorder.CreditCardRequest{
		CallerID: "intruder", TransactionID: tx.ID, Amount: 1000, Method: "1", CardToken: "tok",
	})
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)

	assert.Empty(t, h.actions.All(action.KindAuthorize))
}

func TestAuthorize_CreditCardOrderIDCountsAttempts(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)

	firstAction := h.card(t, tx.ID, 1000)
	first := firstAction.Result.(action.CreditCardResult)
	second := h.card(t, tx.ID, 1000).Result.(action.CreditCardResult)

	id := tx.ID.String()
	prefix := "118261018" + id[len(id)-6:]
	assert.Equal(t, prefix+"01", first.OrderID)
	assert.Equal(t, prefix+"02", second.OrderID)

	stored, err := h.actions.FindByID(context.Background(), action.KindAuthorize, firstAction.ID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, stored.Object.(action.CreditCardObject).OrderID)
}

func TestAuthorizeMenuItems_RejectsDiscountAboveLineTotal(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	h.mocks.Inventory.SetStock(testutil.EventID, "POP", 1)

	_, err := h.reservations.AuthorizeMenuItems(context.Background(), placeorder.MenuItemRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		EventID:       testutil.EventID,
		Items:         []action.MenuItemOffer{{ItemCode: "POP", Quantity: 1, UnitPrice: 100, Discount: 500}},
	})
	require.ErrorIs(t, err, domainErrors.ErrArgument)
	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "MenuItemRequest.Items[0].Discount", ve.Field)
	assert.Empty(t, h.actions.All(action.KindAuthorize))

	_, err = h.reservations.AuthorizeMenuItems(context.Background(), placeorder.MenuItemRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		EventID:       testutil.EventID,
		Items:         []action.MenuItemOffer{{ItemCode: "POP", Quantity: 1, UnitPrice: 100, Discount: 100}},
	})
	require.NoError(t, err, "the rejected request took no stock")
}

type failingCreditCard struct {
	gateways.CreditCardGateway
	err error
}

func (f failingCreditCard) ExecTran(ctx context.Context, req gateways.ExecTranRequest) (*gateways.ExecTranResult, error) {
	return nil, f.err
}

func TestAuthorize_GatewayFailureGivesUp(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	cause := domainErrors.ServiceUnavailable("creditcard", errors.New("connection reset"))
	cards := placeorder.NewCreditCardAuthorizer(h.svc, failingCreditCard{CreditCardGateway: h.mocks.CreditCard, err: cause})

	_, err := cards.Authorize(context.Background(), placeorder.CreditCardRequest{
		CallerID: testutil.AgentID, TransactionID: tx.ID, Amount: 1000, Method: "1", CardToken: "tok",
	})
	assert.Same(t, cause, err)

	recorded := h.actions.All(action.KindAuthorize)
	require.Len(t, recorded, 1)
	assert.Equal(t, action.StatusFailed, recorded[0].Status)
	require.NotNil(t, recorded[0].Error)
	assert.Equal(t, "service_unavailable", recorded[0].Error.Code)
}

func TestAuthorize_GiveUpFailureKeepsOriginalError(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	h.actions.GiveUpFunc = func(ctx context.Context, kind action.Kind, id uuid.UUID, actionErr *action.Error) (*action.Action, error) {
		return nil, errors.New("store unavailable")
	}

	_, err := h.reservations.AuthorizeSeats(context.Background(), placeorder.SeatReservationRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		EventID:       "unknown-event",
		Offers:        []action.SeatOffer{{SeatSection: "A", SeatNumber: "1", TicketTypeCode: "ADULT", Price: 1000}},
	})
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestAuthorize_ReleasesWhenCompletionCannotBeRecorded(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	storeErr := errors.New("write conflict")
	h.actions.CompleteFunc = func(ctx context.Context, kind action.Kind, id uuid.UUID, result action.Result) (*action.Action, error) {
		return nil, storeErr
	}

	_, err := h.reservations.AuthorizeSeats(context.Background(), placeorder.SeatReservationRequest{
		CallerID:      testutil.AgentID,
		TransactionID: tx.ID,
		EventID:       testutil.EventID,
		Offers:        []action.SeatOffer{{SeatSection: "A", SeatNumber: "7", TicketTypeCode: "ADULT", Price: 1000}},
	})
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, h.mocks.Inventory.IsHeld(testutil.EventID, "A", "7"))

	recorded := h.actions.All(action.KindAuthorize)
	require.Len(t, recorded, 1)
	assert.Equal(t, action.StatusFailed, recorded[0].Status)
}

func TestCancel_ReleasesCompletedAuthorizations(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	ctx := context.Background()

	seat := h.seat(t, tx.ID, "3", 1000)
	require.True(t, h.mocks.Inventory.IsHeld(testutil.EventID, "A", "3"))
	require.NoError(t, h.reservations.CancelSeats(ctx, testutil.AgentID, tx.ID, seat.ID))
	assert.False(t, h.mocks.Inventory.IsHeld(testutil.EventID, "A", "3"))

	card := h.card(t, tx.ID, 1000)
	require.NoError(t, h.cards.Cancel(ctx, testutil.AgentID, tx.ID, card.ID))
	trade, err := h.mocks.CreditCard.SearchTrade(ctx, card.Result.(action.CreditCardResult).OrderID)
	require.NoError(t, err)
	assert.Equal(t, action.TradeVoid, trade.Status)

	held, err := h.points.Authorize(ctx, placeorder.PointAccountRequest{
		CallerID: testutil.AgentID, TransactionID: tx.ID, AccountNumber: testutil.PointAccountNumber, Amount: 100_000,
	})
	require.NoError(t, err)
	require.NoError(t, h.points.Cancel(ctx, testutil.AgentID, tx.ID, held.ID))
	_, err = h.points.Authorize(ctx, placeorder.PointAccountRequest{
		CallerID: testutil.AgentID, TransactionID: tx.ID, AccountNumber: testutil.PointAccountNumber, Amount: 100_000,
	})
	assert.NoError(t, err, "canceled hold must not reduce the available balance")

	stored, err := h.actions.FindByID(ctx, action.KindAuthorize, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, action.StatusCanceled, stored.Status)
	assert.ErrorIs(t, h.reservations.CancelSeats(ctx, testutil.AgentID, tx.ID, seat.ID), domainErrors.ErrNotFound)
}

type failingRelease struct {
	gateways.InventoryService
}

func (failingRelease) ReleaseSeats(ctx context.Context, ref string) error {
	return errors.New("inventory down")
}

func TestCancel_ReleaseFailureDoesNotFailCancel(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	reservations := placeorder.NewReservationAuthorizer(h.svc, failingRelease{InventoryService: h.mocks.Inventory})

	seat := h.seat(t, tx.ID, "4", 1000)
	require.NoError(t, reservations.CancelSeats(context.Background(), testutil.AgentID, tx.ID, seat.ID))

	stored, err := h.actions.FindByID(context.Background(), action.KindAuthorize, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, action.StatusCanceled, stored.Status)
	assert.True(t, h.mocks.Inventory.IsHeld(testutil.EventID, "A", "4"))
}

func TestCancel_WrongObjectType(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	seat := h.seat(t, tx.ID, "5", 1000)

	err := h.cards.Cancel(context.Background(), testutil.AgentID, tx.ID, seat.ID)
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tx, err := h.svc.Start(ctx, placeorder.StartRequest{Agent: testutil.Customer(), Seller: testutil.Seller(), PassportToken: "pass-1"})
	require.NoError(t, err)
	assert.Equal(t, testutil.BaseTime.Add(15*time.Minute), tx.Expires)
	assert.Equal(t, transaction.Unexported, tx.TasksExportationStatus)

	_, err = h.svc.Start(ctx, placeorder.StartRequest{Agent: testutil.Customer(), Seller: testutil.Seller(), PassportToken: "pass-1"})
	assert.ErrorIs(t, err, domainErrors.ErrAlreadyInUse)

	_, err = h.svc.Start(ctx, placeorder.StartRequest{
		Agent: testutil.Customer(), Seller: testutil.Seller(), Expires: testutil.BaseTime.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, domainErrors.ErrArgument)

	_, err = h.svc.Start(ctx, placeorder.StartRequest{Agent: testutil.Customer(), Seller: transaction.Seller{ID: "s"}})
	assert.ErrorIs(t, err, domainErrors.ErrArgumentNull)
}

func TestSetCustomerContact_Validates(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)

	contact := testutil.Contact()
	contact.Email = "not-an-email"
	err := h.svc.SetCustomerContact(context.Background(), testutil.AgentID, tx.ID, contact)
	assert.ErrorIs(t, err, domainErrors.ErrArgument)
}

func TestCancelTransaction(t *testing.T) {
	h := newHarness(t)
	tx := h.start(t)
	ctx := context.Background()

	_, err := h.svc.Cancel(ctx, "intruder", tx.ID)
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)

	canceled, err := h.svc.Cancel(ctx, testutil.AgentID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCanceled, canceled.Status)
	require.NotNil(t, canceled.EndDate)

	_, err = h.svc.Cancel(ctx, testutil.AgentID, tx.ID)
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}
