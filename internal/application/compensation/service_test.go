package compensation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/ordercore/internal/application/compensation"
	"github.com/cassiomorais/ordercore/internal/application/followup"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/cassiomorais/ordercore/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(env *testutil.Env) *compensation.Service {
	return newServiceWith(env, env.Gateways)
}

func newServiceWith(env *testutil.Env, gw *gateways.Set) *compensation.Service {
	enq := followup.NewEnqueuer(env.Tasks, config.TasksConfig{DefaultTries: 3}, zerolog.Nop(), env.Clock.Now)
	return compensation.NewService(env.Actions, gw, enq, nil, zerolog.Nop())
}

// unreachableInventory fails every release.
type unreachableInventory struct {
	gateways.InventoryService
}

var errInventoryDown = errors.New("inventory: connection refused")

func (unreachableInventory) ReleaseSeats(context.Context, string) error {
	return errInventoryDown
}

func cardResult(t *testing.T, env *testutil.Env, txID uuid.UUID) action.CreditCardResult {
	t.Helper()
	all, err := env.Actions.FindAuthorizeByTransactionID(context.Background(), txID)
	require.NoError(t, err)
	cards := action.OfType(all, action.ObjectCreditCard)
	require.Len(t, cards, 1)
	return cards[0].Result.(action.CreditCardResult)
}

func TestCancelCreditCardAuth_VoidsAuthorizedTrade(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	svc := newService(env)
	ctx := context.Background()

	require.NoError(t, svc.CancelCreditCardAuth(ctx, tx.ID))

	r := cardResult(t, env, tx.ID)
	trade, err := env.Mocks.CreditCard.SearchTrade(ctx, r.OrderID)
	require.NoError(t, err)
	assert.Equal(t, action.TradeVoid, trade.Status)
	require.Len(t, env.Mocks.CreditCard.AlterTranCalls(), 1)

	cancels := env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 1)
	assert.Equal(t, action.StatusCompleted, cancels[0].Status)
	assert.Equal(t, tx.ID.String(), cancels[0].Purpose.ID)
	obj := cancels[0].Object.(action.PaymentObject)
	assert.Equal(t, r.OrderID, obj.PaymentMethodID)
	assert.Equal(t, action.TradeVoid, cancels[0].Result.(action.PaymentResult).TradeStatus)

	require.NoError(t, svc.CancelCreditCardAuth(ctx, tx.ID))
	assert.Len(t, env.Mocks.CreditCard.AlterTranCalls(), 1, "a void trade is not voided again")
	cancels = env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 2)
	assert.True(t, cancels[1].Result.(action.PaymentResult).NoOp)
}

func TestCancelCreditCardAuth_AlreadyVoidIsNoOp(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	ctx := context.Background()

	r := cardResult(t, env, tx.ID)
	_, err := env.Mocks.CreditCard.AlterTran(ctx, gateways.AlterTranRequest{AccessID: r.AccessID, AccessPass: r.AccessPass, JobCd: gateways.JobVoid})
	require.NoError(t, err)
	calls := len(env.Mocks.CreditCard.AlterTranCalls())

	require.NoError(t, newService(env).CancelCreditCardAuth(ctx, tx.ID))
	assert.Len(t, env.Mocks.CreditCard.AlterTranCalls(), calls)

	cancels := env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 1)
	assert.Equal(t, action.StatusCompleted, cancels[0].Status)
	assert.True(t, cancels[0].Result.(action.PaymentResult).NoOp)
}

func TestCancelSeatReservationAuth_ReleasesSeats(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1", "2"}, SeatPrice: 500, CardAmount: 1000})
	require.True(t, env.Mocks.Inventory.IsHeld(testutil.EventID, "A", "2"))

	svc := newService(env)
	require.NoError(t, svc.CancelSeatReservationAuth(context.Background(), tx.ID))
	assert.False(t, env.Mocks.Inventory.IsHeld(testutil.EventID, "A", "1"))
	assert.False(t, env.Mocks.Inventory.IsHeld(testutil.EventID, "A", "2"))

	require.NoError(t, svc.CancelSeatReservationAuth(context.Background(), tx.ID))

	cancels := env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 2)
	for _, c := range cancels {
		assert.Equal(t, action.StatusCompleted, c.Status)
		assert.Equal(t, action.ObjectSeatReservation, c.Object.(action.ReservationObject).Method)
	}
}

func TestCancelSeatReservationAuth_ReleaseFailureRecordsFailedAction(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	gw := *env.Gateways
	gw.Inventory = unreachableInventory{env.Gateways.Inventory}

	err := newServiceWith(env, &gw).CancelSeatReservationAuth(context.Background(), tx.ID)
	require.ErrorIs(t, err, errInventoryDown)

	cancels := env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 1)
	assert.Equal(t, action.StatusFailed, cancels[0].Status)
	require.NotNil(t, cancels[0].Error)
	assert.Equal(t, errInventoryDown.Error(), cancels[0].Error.Message)
	assert.Equal(t, tx.ID.String(), cancels[0].Purpose.ID)
	assert.True(t, env.Mocks.Inventory.IsHeld(testutil.EventID, "A", "1"))
}

func TestCancel_BookkeepingFailureKeepsOriginalError(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	gw := *env.Gateways
	gw.Inventory = unreachableInventory{env.Gateways.Inventory}
	env.Actions.GiveUpFunc = func(context.Context, action.Kind, uuid.UUID, *action.Error) (*action.Action, error) {
		return nil, errors.New("store unavailable")
	}

	err := newServiceWith(env, &gw).CancelSeatReservationAuth(context.Background(), tx.ID)
	assert.ErrorIs(t, err, errInventoryDown)
}

func TestCancelPointAccountAuth_ReleasesHold(t *testing.T) {
	env := testutil.NewEnv(t)
	tx := env.StartWithAuthorizations(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 100_000, Points: 100_000})
	ctx := context.Background()

	_, err := env.Gateways.PointAccount.StartPay(ctx, gateways.PayRequest{AccountNumber: testutil.PointAccountNumber, Amount: 1})
	require.ErrorIs(t, err, domainErrors.ErrArgument, "the whole balance is held")

	require.NoError(t, newService(env).CancelPointAccountAuth(ctx, tx.ID))

	_, err = env.Gateways.PointAccount.StartPay(ctx, gateways.PayRequest{AccountNumber: testutil.PointAccountNumber, Amount: 100_000})
	assert.NoError(t, err)

	cancels := env.Actions.All(action.KindCancel)
	require.Len(t, cancels, 1)
	assert.Equal(t, action.StatusCompleted, cancels[0].Status)
	assert.Equal(t, action.ObjectPointAccount, cancels[0].Object.(action.PaymentObject).Method)
}

func refundOf(t *testing.T, method action.ObjectType, placedPotential []action.Attributes) action.Attributes {
	t.Helper()
	for _, pay := range placedPotential[0].PotentialActions {
		obj, ok := pay.Object.(action.PaymentObject)
		if pay.Kind == action.KindPay && ok && obj.Method == method {
			return action.Attributes{
				Kind:      action.KindRefund,
				Agent:     pay.Recipient,
				Recipient: pay.Agent,
				Object:    obj,
				Purpose:   pay.Purpose,
				PotentialActions: []action.Attributes{{
					Kind:   action.KindSend,
					Object: action.OrderObject{OrderNumber: obj.OrderNumber},
				}},
			}
		}
	}
	t.Fatalf("no %s pay action", method)
	return action.Attributes{}
}

func TestRefundCreditCard(t *testing.T) {
	env := testutil.NewEnv(t)
	placed := env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	svc := newService(env)
	ctx := context.Background()
	refund := refundOf(t, action.ObjectCreditCard, placed.PotentialActions)

	require.NoError(t, svc.RefundCreditCard(ctx, refund))

	refunds := env.Actions.All(action.KindRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, action.StatusCompleted, refunds[0].Status)
	assert.Equal(t, action.TradeVoid, refunds[0].Result.(action.PaymentResult).TradeStatus)
	assert.Len(t, env.Tasks.All(task.NameSendOrder), 1)

	require.NoError(t, svc.RefundCreditCard(ctx, refund))
	refunds = env.Actions.All(action.KindRefund)
	require.Len(t, refunds, 2)
	noops := 0
	for _, r := range refunds {
		if r.Result.(action.PaymentResult).NoOp {
			noops++
		}
	}
	assert.Equal(t, 1, noops)
	assert.Len(t, env.Tasks.All(task.NameSendOrder), 1, "the refund notice is enqueued once")
}

func TestRefundCreditCard_GatewayFailureGivesUp(t *testing.T) {
	env := testutil.NewEnv(t)
	placed := env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	refund := refundOf(t, action.ObjectCreditCard, placed.PotentialActions)
	obj := refund.Object.(action.PaymentObject)
	obj.PaymentMethodID = "unknown-order-id"
	refund.Object = obj

	err := newService(env).RefundCreditCard(context.Background(), refund)
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)

	refunds := env.Actions.All(action.KindRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, action.StatusFailed, refunds[0].Status)
	assert.Empty(t, env.Tasks.All(task.NameSendOrder))
}

func TestRefund_CompleteFailureGivesUp(t *testing.T) {
	env := testutil.NewEnv(t)
	placed := env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	refund := refundOf(t, action.ObjectCreditCard, placed.PotentialActions)
	errStore := errors.New("store unavailable")
	env.Actions.CompleteFunc = func(context.Context, action.Kind, uuid.UUID, action.Result) (*action.Action, error) {
		return nil, errStore
	}

	err := newService(env).RefundCreditCard(context.Background(), refund)
	assert.ErrorIs(t, err, errStore)

	refunds := env.Actions.All(action.KindRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, action.StatusFailed, refunds[0].Status)
	assert.Equal(t, errStore.Error(), refunds[0].Error.Message)
	assert.Empty(t, env.Tasks.All(task.NameSendOrder))
}

func TestRefundPointAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	placed := env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 700, Points: 700})
	ctx := context.Background()
	before := env.Mocks.PointAccount.Balance(testutil.PointAccountNumber)

	require.NoError(t, newService(env).RefundPointAccount(ctx, refundOf(t, action.ObjectPointAccount, placed.PotentialActions)))

	assert.Equal(t, before+700, env.Mocks.PointAccount.Balance(testutil.PointAccountNumber))
	refunds := env.Actions.All(action.KindRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, action.StatusCompleted, refunds[0].Status)
}

func TestRefund_RejectsOtherActions(t *testing.T) {
	env := testutil.NewEnv(t)
	err := newService(env).RefundCreditCard(context.Background(), action.Attributes{Kind: action.KindPay, Object: action.PaymentObject{}})
	assert.ErrorIs(t, err, domainErrors.ErrArgument)
}
