package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, kind, status, agent, seller, object, result, potential_actions, error,
	expires, start_date, end_date, tasks_exportation_status, tasks_exported_at, updated_at`

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool, now: time.Now}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Start inserts a new InProgress transaction.
func (r *TransactionRepository) Start(ctx context.Context, tx *transaction.Transaction) error {
	agent, err := json.Marshal(tx.Agent)
	if err != nil {
		return fmt.Errorf("marshal agent: %w", err)
	}
	seller, err := json.Marshal(tx.Seller)
	if err != nil {
		return fmt.Errorf("marshal seller: %w", err)
	}
	object, err := json.Marshal(tx.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO transactions
		 (id, kind, status, agent, seller, object, expires, start_date, tasks_exportation_status, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		tx.ID, string(tx.Kind), string(tx.Status), agent, seller, object,
		tx.Expires, tx.StartDate, string(tx.TasksExportationStatus), tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.AlreadyInUse("transaction", err)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// FindByID retrieves a transaction in any status.
func (r *TransactionRepository) FindByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE kind = $1 AND id = $2`,
		string(kind), id))
}

// FindInProgressByID retrieves a transaction only while it is InProgress.
func (r *TransactionRepository) FindInProgressByID(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE kind = $1 AND id = $2 AND status = 'InProgress'`,
		string(kind), id))
}

// SetCustomerContact replaces the customer contact of an InProgress transaction.
func (r *TransactionRepository) SetCustomerContact(ctx context.Context, kind transaction.Kind, id uuid.UUID, contact transaction.CustomerContact) error {
	data, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("marshal customer contact: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions
		 SET object = jsonb_set(object, '{customerContact}', $3::jsonb), updated_at = $4
		 WHERE kind = $1 AND id = $2 AND status = 'InProgress'`,
		string(kind), id, data, r.now(),
	)
	if err != nil {
		return fmt.Errorf("set customer contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NotFound("transaction")
	}
	return nil
}

// Confirm is the commit point of a transaction. It freezes the authorize
// action snapshot, the result and the potential actions in one write.
func (r *TransactionRepository) Confirm(ctx context.Context, p transaction.ConfirmParams) (*transaction.Transaction, error) {
	actions, err := json.Marshal(p.AuthorizeActions)
	if err != nil {
		return nil, fmt.Errorf("marshal authorize actions: %w", err)
	}
	result, err := json.Marshal(p.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	potentialActions, err := json.Marshal(p.PotentialActions)
	if err != nil {
		return nil, fmt.Errorf("marshal potential actions: %w", err)
	}

	var orderNumber *string
	if p.Kind == transaction.KindPlaceOrder {
		orderNumber = &p.Result.Order.OrderNumber
	}

	now := r.now()
	tx, err := r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`UPDATE transactions
		 SET status = 'Confirmed', end_date = $3,
		     object = jsonb_set(object, '{authorizeActions}', $4::jsonb),
		     result = $5, potential_actions = $6, order_number = $7, updated_at = $3
		 WHERE kind = $1 AND id = $2 AND status = 'InProgress'
		 RETURNING `+transactionColumns,
		string(p.Kind), p.ID, now, actions, result, potentialActions, orderNumber))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domainErrors.AlreadyInUse("order number", err)
		}
		return nil, err
	}
	return tx, nil
}

// Cancel moves an InProgress transaction to Canceled.
func (r *TransactionRepository) Cancel(ctx context.Context, kind transaction.Kind, id uuid.UUID) (*transaction.Transaction, error) {
	now := r.now()
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`UPDATE transactions
		 SET status = 'Canceled', end_date = $3, updated_at = $3
		 WHERE kind = $1 AND id = $2 AND status = 'InProgress'
		 RETURNING `+transactionColumns,
		string(kind), id, now))
}

// MakeExpired expires every InProgress transaction past its deadline.
func (r *TransactionRepository) MakeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions
		 SET status = 'Expired', end_date = $1, updated_at = $1
		 WHERE status = 'InProgress' AND expires < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("make expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartExportTasks claims one Unexported transaction. Concurrent callers skip
// rows locked by each other, so each transaction is claimed once.
func (r *TransactionRepository) StartExportTasks(ctx context.Context, kind transaction.Kind, status transaction.Status) (*transaction.Transaction, error) {
	tx, err := r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`UPDATE transactions
		 SET tasks_exportation_status = 'Exporting', updated_at = $3
		 WHERE id = (
		     SELECT id FROM transactions
		     WHERE kind = $1 AND status = $2 AND tasks_exportation_status = 'Unexported'
		     ORDER BY updated_at ASC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+transactionColumns,
		string(kind), string(status), r.now()))
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

// SetTasksExportedByID marks an Exporting transaction as Exported.
func (r *TransactionRepository) SetTasksExportedByID(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions
		 SET tasks_exportation_status = 'Exported', tasks_exported_at = $2, updated_at = $2
		 WHERE id = $1 AND tasks_exportation_status = 'Exporting'`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("set tasks exported: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NotFound("exporting transaction")
	}
	return nil
}

// ReexportTasks releases Exporting leases older than interval.
func (r *TransactionRepository) ReexportTasks(ctx context.Context, interval time.Duration) (int64, error) {
	now := r.now()
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions
		 SET tasks_exportation_status = 'Unexported', updated_at = $2
		 WHERE tasks_exportation_status = 'Exporting' AND updated_at < $1`,
		now.Add(-interval), now,
	)
	if err != nil {
		return 0, fmt.Errorf("reexport tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindConfirmedByOrderNumber retrieves the PlaceOrder transaction behind an order.
func (r *TransactionRepository) FindConfirmedByOrderNumber(ctx context.Context, orderNumber string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE kind = 'PlaceOrder' AND status = 'Confirmed' AND order_number = $1`,
		orderNumber))
}

// --- scanning helpers ---

func (r *TransactionRepository) scanTransaction(s scanner) (*transaction.Transaction, error) {
	tx := &transaction.Transaction{}
	var (
		kind, status, exportStatus                       string
		agent, seller, object, result, potential, txErr []byte
	)
	err := s.Scan(
		&tx.ID, &kind, &status, &agent, &seller, &object, &result, &potential, &txErr,
		&tx.Expires, &tx.StartDate, &tx.EndDate, &exportStatus, &tx.TasksExportedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NotFound("transaction")
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	tx.Kind = transaction.Kind(kind)
	tx.Status = transaction.Status(status)
	tx.TasksExportationStatus = transaction.ExportationStatus(exportStatus)

	if err := json.Unmarshal(agent, &tx.Agent); err != nil {
		return nil, fmt.Errorf("unmarshal agent: %w", err)
	}
	if err := json.Unmarshal(seller, &tx.Seller); err != nil {
		return nil, fmt.Errorf("unmarshal seller: %w", err)
	}
	if err := json.Unmarshal(object, &tx.Object); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	if len(result) > 0 {
		tx.Result = &transaction.Result{}
		if err := json.Unmarshal(result, tx.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(potential) > 0 {
		if err := json.Unmarshal(potential, &tx.PotentialActions); err != nil {
			return nil, fmt.Errorf("unmarshal potential actions: %w", err)
		}
	}
	if len(txErr) > 0 {
		tx.Error = &action.Error{}
		if err := json.Unmarshal(txErr, tx.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
	}
	return tx, nil
}
