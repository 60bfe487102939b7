package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cassiomorais/ordercore/pkg/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	s := saga.New("test-saga").
		AddStep(saga.Step{
			Name:    "reserve",
			Execute: func(ctx context.Context) error { executed = append(executed, "reserve"); return nil },
		}).
		AddStep(saga.Step{
			Name:    "complete",
			Execute: func(ctx context.Context) error { executed = append(executed, "complete"); return nil },
		})

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"reserve", "complete"}, executed)
}

func TestSaga_FailureCompensatesCompletedStepsInReverse(t *testing.T) {
	var trail []string
	errComplete := errors.New("action no longer active")

	s := saga.New("authorize").
		AddStep(saga.Step{
			Name:       "hold",
			Execute:    func(ctx context.Context) error { trail = append(trail, "hold"); return nil },
			Compensate: func(ctx context.Context) error { trail = append(trail, "release-hold"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "charge",
			Execute:    func(ctx context.Context) error { trail = append(trail, "charge"); return nil },
			Compensate: func(ctx context.Context) error { trail = append(trail, "void-charge"); return nil },
		}).
		AddStep(saga.Step{
			Name:       "complete",
			Execute:    func(ctx context.Context) error { return errComplete },
			Compensate: func(ctx context.Context) error { trail = append(trail, "never"); return nil },
		})

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errComplete)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "complete", stepErr.Step)
	assert.Equal(t, 2, stepErr.Index)
	assert.NoError(t, stepErr.CompensateErr)
	assert.Equal(t, []string{"hold", "charge", "void-charge", "release-hold"}, trail)
}

func TestSaga_CompensationFailureIsReportedSeparately(t *testing.T) {
	errGateway := errors.New("gateway down")
	errRelease := errors.New("release failed")

	s := saga.New("authorize").
		AddStep(saga.Step{
			Name:       "hold",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errRelease },
		}).
		AddStep(saga.Step{
			Name:    "call",
			Execute: func(ctx context.Context) error { return errGateway },
		})

	err := s.Execute(context.Background())

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.ErrorIs(t, err, errGateway)
	assert.NotErrorIs(t, err, errRelease)
	assert.ErrorIs(t, stepErr.CompensateErr, errRelease)
	assert.Contains(t, err.Error(), "compensation also failed")
}

func TestSaga_CompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	compensated := false

	s := saga.New("authorize").
		AddStep(saga.Step{
			Name:    "hold",
			Execute: func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = ctx.Err() == nil
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: "call",
			Execute: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		})

	err := s.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, compensated)
}
