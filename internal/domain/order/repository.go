package order

import (
	"context"
	"time"
)

// Repository defines the interface for order persistence
type Repository interface {
	// CreateIfNotExist inserts the order unless its number is already stored
	CreateIfNotExist(ctx context.Context, o *Order) error

	// FindByOrderNumber retrieves an order by number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// ChangeStatus moves an order to newStatus when the transition is allowed
	ChangeStatus(ctx context.Context, orderNumber string, newStatus Status) error
}

// OwnershipRepository defines the interface for ownership persistence
type OwnershipRepository interface {
	// Save upserts an ownership record by identifier
	Save(ctx context.Context, info OwnershipInfo) error

	// FindByOrderNumber lists the ownership records of an order
	FindByOrderNumber(ctx context.Context, orderNumber string) ([]OwnershipInfo, error)

	// EndByOrderNumber shortens every ownership of an order to ownedThrough
	EndByOrderNumber(ctx context.Context, orderNumber string, ownedThrough time.Time) (int64, error)
}
