package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for transaction persistence. Every
// operation is a single conditional write against the store; none reads and
// then writes in process memory.
type Repository interface {
	// Start inserts an InProgress transaction
	Start(ctx context.Context, tx *Transaction) error

	// FindByID retrieves a transaction in any status
	FindByID(ctx context.Context, kind Kind, id uuid.UUID) (*Transaction, error)

	// FindInProgressByID retrieves a transaction only while it is InProgress
	FindInProgressByID(ctx context.Context, kind Kind, id uuid.UUID) (*Transaction, error)

	// SetCustomerContact updates the contact of an InProgress transaction
	SetCustomerContact(ctx context.Context, kind Kind, id uuid.UUID, contact CustomerContact) error

	// Confirm is the only path to Confirmed
	Confirm(ctx context.Context, params ConfirmParams) (*Transaction, error)

	// Cancel moves an InProgress transaction to Canceled
	Cancel(ctx context.Context, kind Kind, id uuid.UUID) (*Transaction, error)

	// MakeExpired moves every InProgress transaction past its deadline to Expired
	MakeExpired(ctx context.Context, now time.Time) (int64, error)

	// StartExportTasks claims one Unexported transaction of the given kind and
	// status by flipping it to Exporting. It returns nil when nothing is pending.
	StartExportTasks(ctx context.Context, kind Kind, status Status) (*Transaction, error)

	// SetTasksExportedByID marks an Exporting transaction as Exported
	SetTasksExportedByID(ctx context.Context, id uuid.UUID) error

	// ReexportTasks releases Exporting leases older than interval
	ReexportTasks(ctx context.Context, interval time.Duration) (int64, error)

	// FindConfirmedByOrderNumber retrieves the Confirmed PlaceOrder transaction
	// that produced the order
	FindConfirmedByOrderNumber(ctx context.Context, orderNumber string) (*Transaction, error)
}
