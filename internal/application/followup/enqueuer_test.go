package followup_test

import (
	"context"
	"testing"

	"github.com/cassiomorais/ordercore/internal/application/followup"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_IsIdempotent(t *testing.T) {
	clock := testutil.NewClock(testutil.BaseTime)
	tasks := testutil.NewTaskStore(clock)
	enq := followup.NewEnqueuer(tasks, config.TasksConfig{DefaultTries: 5, Tries: map[string]int{"sendorder": 3}}, zerolog.Nop(), clock.Now)

	followUps := []action.Attributes{
		{Kind: action.KindPay, Object: action.PaymentObject{Method: action.ObjectCreditCard, AuthorizeActionID: uuid.New()}},
		{Kind: action.KindPay, Object: action.PaymentObject{Method: action.ObjectPointAccount, AuthorizeActionID: uuid.New()}},
		{Kind: action.KindSend, Object: action.OrderObject{OrderNumber: "118-261018-000001"}},
	}

	require.NoError(t, followup.NewEnqueuer(tasks, config.TasksConfig{DefaultTries: 5}, zerolog.Nop(), clock.Now).Enqueue(context.Background(), "118-261018-000001", followUps))
	require.NoError(t, enq.Enqueue(context.Background(), "118-261018-000001", followUps))

	saved := tasks.All()
	require.Len(t, saved, 3)

	send := tasks.All(task.NameSendOrder)
	require.Len(t, send, 1)
	assert.Equal(t, "sendOrder:118-261018-000001", *send[0].UniqueKey)
	assert.Equal(t, 5, send[0].RemainingNumberOfTries, "the first enqueue wins")

	var attrs action.Attributes
	require.NoError(t, send[0].DecodeData(&attrs))
	assert.Equal(t, action.KindSend, attrs.Kind)
}

func TestEnqueue_UnknownFollowUp(t *testing.T) {
	clock := testutil.NewClock(testutil.BaseTime)
	enq := followup.NewEnqueuer(testutil.NewTaskStore(clock), config.TasksConfig{DefaultTries: 1}, zerolog.Nop(), clock.Now)

	err := enq.Enqueue(context.Background(), "x", []action.Attributes{{Kind: action.KindOrder, Object: action.OrderObject{}}})
	assert.ErrorIs(t, err, domainErrors.ErrNotImplemented)
}
