package gateways

import (
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Set bundles the guarded gateway clients handed to the application services.
type Set struct {
	CreditCard   CreditCardGateway
	PointAccount PointAccountService
	Inventory    InventoryService
	Notifier     Notifier
	Breakers     []*Breaker
}

// Mocks holds the in-memory systems behind a mock Set.
type Mocks struct {
	CreditCard   *MockCreditCardGateway
	PointAccount *MockPointAccountService
	Inventory    *MockInventoryService
	Notifier     *MockNotifier
}

// NewMockSet wires in-memory gateways behind breakers, with the chaos
// settings from cfg.
func NewMockSet(cfg config.GatewaysConfig, metrics *observability.Metrics, logger zerolog.Logger) (*Set, *Mocks) {
	opts := []MockOption{
		WithLatency(cfg.MockLatency),
		WithFailureRate(cfg.MockFailureRate),
	}
	mocks := &Mocks{
		CreditCard:   NewMockCreditCardGateway(opts...),
		PointAccount: NewMockPointAccountService(opts...),
		Inventory:    NewMockInventoryService(opts...),
		Notifier:     NewMockNotifier(opts...),
	}
	return NewSet(cfg, metrics, logger, mocks.CreditCard, mocks.PointAccount, mocks.Inventory, mocks.Notifier), mocks
}

// NewSet guards each client with its own breaker.
func NewSet(cfg config.GatewaysConfig, metrics *observability.Metrics, logger zerolog.Logger,
	cc CreditCardGateway, pa PointAccountService, inv InventoryService, n Notifier) *Set {
	ccBreaker := NewBreaker("creditcard", cfg, metrics, logger)
	paBreaker := NewBreaker("pointaccount", cfg, metrics, logger)
	invBreaker := NewBreaker("inventory", cfg, metrics, logger)
	nBreaker := NewBreaker("notifier", cfg, metrics, logger)

	return &Set{
		CreditCard:   GuardCreditCard(cc, ccBreaker),
		PointAccount: GuardPointAccount(pa, paBreaker),
		Inventory:    GuardInventory(inv, invBreaker),
		Notifier:     GuardNotifier(n, nBreaker),
		Breakers:     []*Breaker{ccBreaker, paBreaker, invBreaker, nBreaker},
	}
}
