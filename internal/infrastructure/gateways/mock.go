package gateways

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// chaos injects latency and failures into the in-memory gateways.
type chaos struct {
	name         string
	failureRate  float64 // 0.0 to 1.0
	throttleRate float64 // 0.0 to 1.0
	latency      time.Duration
}

type MockOption func(*chaos)

func WithFailureRate(rate float64) MockOption {
	return func(c *chaos) { c.failureRate = rate }
}

func WithThrottleRate(rate float64) MockOption {
	return func(c *chaos) { c.throttleRate = rate }
}

func WithLatency(d time.Duration) MockOption {
	return func(c *chaos) { c.latency = d }
}

func newChaos(name string, opts []MockOption) chaos {
	c := chaos{name: name}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// before simulates the network leg of a call.
func (c chaos) before(ctx context.Context, op string) error {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if c.throttleRate > 0 && rand.Float64() < c.throttleRate {
		return fmt.Errorf("%s %s: %w", c.name, op, ErrThrottled)
	}
	if c.failureRate > 0 && rand.Float64() < c.failureRate {
		return fmt.Errorf("%s %s: simulated failure: %w", c.name, op, ErrRejected)
	}
	return nil
}
