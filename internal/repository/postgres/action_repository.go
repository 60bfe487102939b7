package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const actionColumns = `id, kind, status, agent, recipient, object, purpose_type, purpose_id,
	result, error, potential_actions, start_date, end_date`

// ActionRepository implements action.Repository using PostgreSQL.
type ActionRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository(pool *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{pool: pool, now: time.Now}
}

func (r *ActionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Start inserts a new Active action.
func (r *ActionRepository) Start(ctx context.Context, attrs action.Attributes) (*action.Action, error) {
	a := action.New(attrs, r.now())

	agent, err := json.Marshal(a.Agent)
	if err != nil {
		return nil, fmt.Errorf("marshal agent: %w", err)
	}
	recipient, err := json.Marshal(a.Recipient)
	if err != nil {
		return nil, fmt.Errorf("marshal recipient: %w", err)
	}
	object, err := action.EncodeObject(a.Object)
	if err != nil {
		return nil, err
	}
	potential, err := json.Marshal(a.PotentialActions)
	if err != nil {
		return nil, fmt.Errorf("marshal potential actions: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO actions
		 (id, kind, status, agent, recipient, object_type, object, purpose_type, purpose_id,
		  potential_actions, start_date, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		a.ID, string(a.Kind), string(a.Status), agent, recipient, string(a.ObjectType()), object,
		a.Purpose.TypeOf, a.Purpose.ID, potential, a.StartDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	return a, nil
}

// Complete moves an Active action to Completed.
func (r *ActionRepository) Complete(ctx context.Context, kind action.Kind, id uuid.UUID, result action.Result) (*action.Action, error) {
	data, err := action.EncodeResult(result)
	if err != nil {
		return nil, err
	}
	return r.scanAction(r.db(ctx).QueryRow(ctx,
		`UPDATE actions
		 SET status = 'CompletedActionStatus', result = $3, end_date = $4, updated_at = $4
		 WHERE kind = $1 AND id = $2 AND status = 'ActiveActionStatus'
		 RETURNING `+actionColumns,
		string(kind), id, data, r.now()))
}

// GiveUp moves an Active action to Failed.
func (r *ActionRepository) GiveUp(ctx context.Context, kind action.Kind, id uuid.UUID, actionErr *action.Error) (*action.Action, error) {
	data, err := json.Marshal(actionErr)
	if err != nil {
		return nil, fmt.Errorf("marshal action error: %w", err)
	}
	return r.scanAction(r.db(ctx).QueryRow(ctx,
		`UPDATE actions
		 SET status = 'FailedActionStatus', error = $3, end_date = $4, updated_at = $4
		 WHERE kind = $1 AND id = $2 AND status = 'ActiveActionStatus'
		 RETURNING `+actionColumns,
		string(kind), id, data, r.now()))
}

// Cancel moves an Active or Completed action to Canceled and returns the row
// as it was before the update.
func (r *ActionRepository) Cancel(ctx context.Context, kind action.Kind, id uuid.UUID) (*action.Action, error) {
	return r.scanAction(r.db(ctx).QueryRow(ctx,
		`WITH prev AS (
		     SELECT `+actionColumns+` FROM actions
		     WHERE kind = $1 AND id = $2
		       AND status IN ('ActiveActionStatus', 'CompletedActionStatus')
		     FOR UPDATE
		 ), updated AS (
		     UPDATE actions a
		     SET status = 'CanceledActionStatus', end_date = COALESCE(a.end_date, $3), updated_at = $3
		     FROM prev WHERE a.id = prev.id
		     RETURNING a.id
		 )
		 SELECT `+actionColumns+` FROM prev WHERE EXISTS (SELECT 1 FROM updated)`,
		string(kind), id, r.now()))
}

// FindByID retrieves an action by kind and ID.
func (r *ActionRepository) FindByID(ctx context.Context, kind action.Kind, id uuid.UUID) (*action.Action, error) {
	return r.scanAction(r.db(ctx).QueryRow(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE kind = $1 AND id = $2`,
		string(kind), id))
}

// FindAuthorizeByTransactionID lists the authorize actions of a transaction.
func (r *ActionRepository) FindAuthorizeByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*action.Action, error) {
	return r.FindByPurpose(ctx, action.KindAuthorize, transactionID.String())
}

// FindByPurpose lists actions of a kind serving the purpose, oldest first.
func (r *ActionRepository) FindByPurpose(ctx context.Context, kind action.Kind, purposeID string) ([]*action.Action, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+actionColumns+` FROM actions
		 WHERE kind = $1 AND purpose_id = $2
		 ORDER BY start_date ASC`,
		string(kind), purposeID)
	if err != nil {
		return nil, fmt.Errorf("find actions by purpose: %w", err)
	}
	defer rows.Close()

	var actions []*action.Action
	for rows.Next() {
		a, err := r.scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// --- scanning helpers ---

func (r *ActionRepository) scanAction(s scanner) (*action.Action, error) {
	a := &action.Action{}
	var (
		kind, status                                            string
		agent, recipient, object, result, actionErr, potential []byte
	)
	err := s.Scan(
		&a.ID, &kind, &status, &agent, &recipient, &object, &a.Purpose.TypeOf, &a.Purpose.ID,
		&result, &actionErr, &potential, &a.StartDate, &a.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.NotFound("action")
		}
		return nil, fmt.Errorf("scan action: %w", err)
	}

	a.Kind = action.Kind(kind)
	a.Status = action.Status(status)

	if err := json.Unmarshal(agent, &a.Agent); err != nil {
		return nil, fmt.Errorf("unmarshal agent: %w", err)
	}
	if err := json.Unmarshal(recipient, &a.Recipient); err != nil {
		return nil, fmt.Errorf("unmarshal recipient: %w", err)
	}
	if a.Object, err = action.DecodeObject(object); err != nil {
		return nil, err
	}
	if a.Result, err = action.DecodeResult(result); err != nil {
		return nil, err
	}
	if len(actionErr) > 0 && string(actionErr) != "null" {
		a.Error = &action.Error{}
		if err := json.Unmarshal(actionErr, a.Error); err != nil {
			return nil, fmt.Errorf("unmarshal action error: %w", err)
		}
	}
	if len(potential) > 0 {
		if err := json.Unmarshal(potential, &a.PotentialActions); err != nil {
			return nil, fmt.Errorf("unmarshal potential actions: %w", err)
		}
	}
	return a, nil
}
