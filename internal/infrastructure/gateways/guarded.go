package gateways

import (
	"context"
)

type guardedCreditCard struct {
	next    CreditCardGateway
	breaker *Breaker
}

// GuardCreditCard wraps a credit card gateway with a breaker.
func GuardCreditCard(next CreditCardGateway, b *Breaker) CreditCardGateway {
	return &guardedCreditCard{next: next, breaker: b}
}

func (g *guardedCreditCard) EntryTran(ctx context.Context, req EntryTranRequest) (*EntryTranResult, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*EntryTranResult, error) {
		return g.next.EntryTran(ctx, req)
	})
}

func (g *guardedCreditCard) ExecTran(ctx context.Context, req ExecTranRequest) (*ExecTranResult, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*ExecTranResult, error) {
		return g.next.ExecTran(ctx, req)
	})
}

func (g *guardedCreditCard) AlterTran(ctx context.Context, req AlterTranRequest) (*AlterTranResult, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*AlterTranResult, error) {
		return g.next.AlterTran(ctx, req)
	})
}

func (g *guardedCreditCard) SearchTrade(ctx context.Context, orderID string) (*Trade, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*Trade, error) {
		return g.next.SearchTrade(ctx, orderID)
	})
}

type guardedPointAccount struct {
	next    PointAccountService
	breaker *Breaker
}

// GuardPointAccount wraps a point account ledger with a breaker.
func GuardPointAccount(next PointAccountService, b *Breaker) PointAccountService {
	return &guardedPointAccount{next: next, breaker: b}
}

func (g *guardedPointAccount) StartPay(ctx context.Context, req PayRequest) (*PendingTransaction, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*PendingTransaction, error) {
		return g.next.StartPay(ctx, req)
	})
}

func (g *guardedPointAccount) StartTransfer(ctx context.Context, req TransferRequest) (*PendingTransaction, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*PendingTransaction, error) {
		return g.next.StartTransfer(ctx, req)
	})
}

func (g *guardedPointAccount) Confirm(ctx context.Context, pendingID string) error {
	return exec(ctx, g.breaker, func(ctx context.Context) error {
		return g.next.Confirm(ctx, pendingID)
	})
}

func (g *guardedPointAccount) Cancel(ctx context.Context, pendingID string) error {
	return exec(ctx, g.breaker, func(ctx context.Context) error {
		return g.next.Cancel(ctx, pendingID)
	})
}

type guardedInventory struct {
	next    InventoryService
	breaker *Breaker
}

// GuardInventory wraps an inventory service with a breaker.
func GuardInventory(next InventoryService, b *Breaker) InventoryService {
	return &guardedInventory{next: next, breaker: b}
}

func (g *guardedInventory) ReserveSeats(ctx context.Context, req SeatReservationRequest) (*SeatReservation, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*SeatReservation, error) {
		return g.next.ReserveSeats(ctx, req)
	})
}

func (g *guardedInventory) ReleaseSeats(ctx context.Context, ref string) error {
	return exec(ctx, g.breaker, func(ctx context.Context) error {
		return g.next.ReleaseSeats(ctx, ref)
	})
}

func (g *guardedInventory) ReserveMenuItems(ctx context.Context, req MenuItemReservationRequest) (*MenuItemReservation, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (*MenuItemReservation, error) {
		return g.next.ReserveMenuItems(ctx, req)
	})
}

func (g *guardedInventory) ReleaseMenuItems(ctx context.Context, ref string) error {
	return exec(ctx, g.breaker, func(ctx context.Context) error {
		return g.next.ReleaseMenuItems(ctx, ref)
	})
}

type guardedNotifier struct {
	next    Notifier
	breaker *Breaker
}

// GuardNotifier wraps a notifier with a breaker.
func GuardNotifier(next Notifier, b *Breaker) Notifier {
	return &guardedNotifier{next: next, breaker: b}
}

func (g *guardedNotifier) Send(ctx context.Context, msg Message) (string, error) {
	return call(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.next.Send(ctx, msg)
	})
}
