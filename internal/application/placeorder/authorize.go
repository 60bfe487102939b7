package placeorder

import (
	"context"
	"errors"

	"github.com/cassiomorais/ordercore/internal/application/request"
	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/cassiomorais/ordercore/pkg/saga"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// authorization describes one authorize call against an external system.
type authorization[R action.AuthorizeResult] struct {
	callerID      string
	transactionID uuid.UUID
	objectType    action.ObjectType
	// request is validated before anything is written
	request any
	// attrs builds the action before it is started
	attrs func(ctx context.Context, tx *transaction.Transaction) (action.Attributes, error)
	call    func(ctx context.Context, tx *transaction.Transaction, a *action.Action) (R, error)
	// release undoes a successful call whose completion could not be recorded
	release func(ctx context.Context, result R) error
}

// authorize runs the start, call, complete-or-give-up protocol shared by
// every authorizer.
func authorize[R action.AuthorizeResult](ctx context.Context, s *Service, auth authorization[R]) (_ *action.Action, err error) {
	ctx, span := observability.StartSpan(ctx, "placeorder.authorize",
		attribute.String("transaction_id", auth.transactionID.String()),
		attribute.String("object_type", string(auth.objectType)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := request.Validate(auth.request); err != nil {
		return nil, err
	}
	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindPlaceOrder, auth.transactionID)
	if err != nil {
		return nil, err
	}
	if err := tx.RequireAgent(auth.callerID); err != nil {
		return nil, err
	}

	attrs, err := auth.attrs(ctx, tx)
	if err != nil {
		return nil, err
	}
	attrs.Kind = action.KindAuthorize
	attrs.Purpose = tx.Purpose()
	started, err := s.actions.Start(ctx, attrs)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With().
		Str("transaction_id", tx.ID.String()).
		Str("action_id", started.ID.String()).
		Str("object_type", string(auth.objectType)).
		Logger()

	var (
		result    R
		completed *action.Action
	)
	flow := saga.New("authorize-"+string(auth.objectType)).
		AddStep(saga.Step{
			Name: "call",
			Execute: func(ctx context.Context) error {
				r, err := auth.call(ctx, tx, started)
				if err != nil {
					return err
				}
				result = r
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if auth.release == nil {
					return nil
				}
				return auth.release(ctx, result)
			},
		}).
		AddStep(saga.Step{
			Name: "complete",
			Execute: func(ctx context.Context) error {
				a, err := s.actions.Complete(ctx, action.KindAuthorize, started.ID, result)
				if err != nil {
					return err
				}
				completed = a
				return nil
			},
		})

	if err := flow.Execute(ctx); err != nil {
		cause := err
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			cause = stepErr.Err
			if stepErr.CompensateErr != nil {
				logger.Error().Err(stepErr.CompensateErr).Msg("release after failed completion did not succeed")
				s.countBookkeepingFailure("release")
			}
		}
		s.giveUp(ctx, started, cause)
		s.countAction(auth.objectType, action.StatusFailed)
		logger.Warn().Err(cause).Msg("authorization failed")
		return nil, cause
	}

	s.countAction(auth.objectType, action.StatusCompleted)
	logger.Info().Int64("price", result.AuthorizedPrice()).Msg("authorization completed")
	return completed, nil
}

// giveUp records the failure. A bookkeeping error is logged and swallowed
// so the caller always sees the original error.
func (s *Service) giveUp(ctx context.Context, a *action.Action, cause error) {
	if _, err := s.actions.GiveUp(context.WithoutCancel(ctx), a.Kind, a.ID, action.NewError(cause)); err != nil {
		s.logger.Warn().Err(err).Str("action_id", a.ID.String()).Msg("could not record failed action")
		s.countBookkeepingFailure("give_up")
	}
}

// cancelAuthorization cancels an Active or Completed authorize action of the
// transaction, then runs release when the action had completed. A release
// failure is logged and does not fail the cancel: local state is already
// Canceled and the external hold may outlive it.
func (s *Service) cancelAuthorization(
	ctx context.Context,
	callerID string,
	transactionID, actionID uuid.UUID,
	objectType action.ObjectType,
	release func(ctx context.Context, prev *action.Action) error,
) error {
	tx, err := s.transactions.FindInProgressByID(ctx, transaction.KindPlaceOrder, transactionID)
	if err != nil {
		return err
	}
	if err := tx.RequireAgent(callerID); err != nil {
		return err
	}
	a, err := s.actions.FindByID(ctx, action.KindAuthorize, actionID)
	if err != nil {
		return err
	}
	if a.Purpose.ID != tx.ID.String() || a.ObjectType() != objectType {
		return domainErrors.NotFound("action")
	}

	prev, err := s.actions.Cancel(ctx, action.KindAuthorize, actionID)
	if err != nil {
		return err
	}
	s.countAction(objectType, action.StatusCanceled)

	if prev.Status == action.StatusCompleted && release != nil {
		if err := release(ctx, prev); err != nil {
			s.logger.Error().Err(err).
				Str("transaction_id", tx.ID.String()).
				Str("action_id", actionID.String()).
				Str("object_type", string(objectType)).
				Msg("external release failed after cancel; external state may drift")
			s.countBookkeepingFailure("release")
		}
	}
	return nil
}

func (s *Service) countAction(objectType action.ObjectType, status action.Status) {
	if s.metrics != nil {
		s.metrics.AuthorizeActionsTotal.WithLabelValues(string(objectType), string(status)).Inc()
	}
}

func (s *Service) countBookkeepingFailure(op string) {
	if s.metrics != nil {
		s.metrics.BookkeepingFailures.WithLabelValues(op).Inc()
	}
}
