package action

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for action persistence. Every status
// change is a single conditional write; a write whose condition does not hold
// returns a NotFound error.
type Repository interface {
	// Start records a new Active action
	Start(ctx context.Context, attrs Attributes) (*Action, error)

	// Complete moves an Active action to Completed and stores its result
	Complete(ctx context.Context, kind Kind, id uuid.UUID, result Result) (*Action, error)

	// GiveUp moves an Active action to Failed and stores the error
	GiveUp(ctx context.Context, kind Kind, id uuid.UUID, actionErr *Error) (*Action, error)

	// Cancel moves an Active or Completed action to Canceled and returns the
	// action as it was before the write
	Cancel(ctx context.Context, kind Kind, id uuid.UUID) (*Action, error)

	// FindByID retrieves an action by kind and ID
	FindByID(ctx context.Context, kind Kind, id uuid.UUID) (*Action, error)

	// FindAuthorizeByTransactionID returns every authorize action whose purpose
	// is the given transaction
	FindAuthorizeByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Action, error)

	// FindByPurpose returns actions of a kind serving the given purpose ID
	FindByPurpose(ctx context.Context, kind Kind, purposeID string) ([]*Action, error)
}
