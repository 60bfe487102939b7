package gateways

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Breaker guards calls to one external system with a circuit breaker, a
// per-call timeout and error classification.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker[any]
	timeout time.Duration
	metrics *observability.Metrics
}

// NewBreaker builds a breaker from the gateway settings. metrics may be nil.
func NewBreaker(name string, cfg config.GatewaysConfig, metrics *observability.Metrics, logger zerolog.Logger) *Breaker {
	b := &Breaker{name: name, timeout: cfg.CallTimeout, metrics: metrics}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsSuccessful: isCallerFault,
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
	return b
}

// Name returns the guarded system name.
func (b *Breaker) Name() string { return b.name }

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// call runs fn through the breaker and classifies its error into the
// domain taxonomy.
func call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	out, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	b.record(err)
	if err != nil {
		return zero, classify(b.name, err)
	}
	v, _ := out.(T)
	return v, nil
}

// exec is call for operations without a result.
func exec(ctx context.Context, b *Breaker, fn func(ctx context.Context) error) error {
	_, err := call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (b *Breaker) record(err error) {
	if b.metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil && !isCallerFault(err):
		result = "failure"
	}
	b.metrics.CircuitBreakerRequests.WithLabelValues(b.name, result).Inc()
}

// isCallerFault reports errors caused by the request rather than the
// health of the remote system. They do not count toward tripping.
func isCallerFault(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrDuplicateOrderID) {
		return true
	}
	return errors.Is(err, domainErrors.ErrNotFound) ||
		errors.Is(err, domainErrors.ErrForbidden) ||
		errors.Is(err, domainErrors.ErrArgument) ||
		errors.Is(err, domainErrors.ErrArgumentNull) ||
		errors.Is(err, domainErrors.ErrAlreadyInUse)
}

func classify(service string, err error) error {
	if domainErrors.CodeOf(err) != "unknown" {
		return err
	}
	switch {
	case errors.Is(err, ErrDuplicateOrderID):
		return domainErrors.AlreadyInUse("gateway order id", err)
	case errors.Is(err, ErrThrottled), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domainErrors.RateLimitExceeded(service, err)
	default:
		return domainErrors.ServiceUnavailable(service, err)
	}
}
