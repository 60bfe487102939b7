package testutil

import (
	"time"

	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/gateways"
	"github.com/rs/zerolog"
)

// GatewaysConfig keeps breakers closed for the handful of calls a test makes.
func GatewaysConfig() config.GatewaysConfig {
	return config.GatewaysConfig{
		CallTimeout:         time.Second,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerMinRequests:  100,
		BreakerFailureRatio: 0.9,
	}
}

// Gateways returns guarded in-memory gateways with the fixture event and a
// funded point account.
func Gateways() (*gateways.Set, *gateways.Mocks) {
	set, mocks := gateways.NewMockSet(GatewaysConfig(), nil, zerolog.Nop())
	mocks.Inventory.AddEvent(Event())
	mocks.PointAccount.OpenAccount(PointAccountNumber, 100_000)
	return set, mocks
}
