package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
)

// OrderStore is an in-memory order.Repository.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*order.Order)}
}

func (s *OrderStore) CreateIfNotExist(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.OrderNumber]; ok {
		return nil
	}
	cp := *o
	s.orders[o.OrderNumber] = &cp
	return nil
}

func (s *OrderStore) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, domainErrors.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) ChangeStatus(ctx context.Context, orderNumber string, newStatus order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderNumber]
	if !ok {
		return domainErrors.NotFound("order")
	}
	if o.Status != newStatus && !slices.Contains(order.AllowedFrom(newStatus), o.Status) {
		return domainErrors.NotFound("order")
	}
	o.Status = newStatus
	return nil
}

// OwnershipStore is an in-memory order.OwnershipRepository.
type OwnershipStore struct {
	mu     sync.Mutex
	infos  map[string]order.OwnershipInfo
	byAdds []string
}

func NewOwnershipStore() *OwnershipStore {
	return &OwnershipStore{infos: make(map[string]order.OwnershipInfo)}
}

func (s *OwnershipStore) Save(ctx context.Context, info order.OwnershipInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.infos[info.Identifier]; !ok {
		s.byAdds = append(s.byAdds, info.Identifier)
	}
	s.infos[info.Identifier] = info
	return nil
}

func (s *OwnershipStore) FindByOrderNumber(ctx context.Context, orderNumber string) ([]order.OwnershipInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []order.OwnershipInfo
	for _, id := range s.byAdds {
		if info := s.infos[id]; info.OrderNumber == orderNumber {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *OwnershipStore) EndByOrderNumber(ctx context.Context, orderNumber string, ownedThrough time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, info := range s.infos {
		if info.OrderNumber == orderNumber && info.OwnedThrough.After(ownedThrough) {
			info.OwnedThrough = ownedThrough
			s.infos[id] = info
			n++
		}
	}
	return n, nil
}
