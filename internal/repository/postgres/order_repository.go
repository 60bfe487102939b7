package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/cassiomorais/ordercore/internal/domain/order"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository implements order.Repository using PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, now: time.Now}
}

func (r *OrderRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// CreateIfNotExist inserts the order once; later calls are no-ops.
func (r *OrderRepository) CreateIfNotExist(ctx context.Context, o *order.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	now := r.now()
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO orders (order_number, status, confirmation_number, order_date, document, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$6)
		 ON CONFLICT (order_number) DO NOTHING`,
		o.OrderNumber, string(o.Status), o.ConfirmationNumber, o.OrderDate, doc, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// FindByOrderNumber retrieves an order by number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	var (
		status string
		doc    []byte
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT status, document FROM orders WHERE order_number = $1`, orderNumber,
	).Scan(&status, &doc)
	if err != nil {
		return nil, notFoundOr(err, "order")
	}

	o := &order.Order{}
	if err := json.Unmarshal(doc, o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o.Status = order.Status(status)
	return o, nil
}

// ChangeStatus moves an order to newStatus. Repeating a change already
// applied succeeds.
func (r *OrderRepository) ChangeStatus(ctx context.Context, orderNumber string, newStatus order.Status) error {
	from := []string{string(newStatus)}
	for _, s := range order.AllowedFrom(newStatus) {
		from = append(from, string(s))
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE orders
		 SET status = $2, document = jsonb_set(document, '{orderStatus}', to_jsonb($2::text)), updated_at = $4
		 WHERE order_number = $1 AND status = ANY($3)`,
		orderNumber, string(newStatus), from, r.now(),
	)
	if err != nil {
		return fmt.Errorf("change order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NotFound("order")
	}
	return nil
}

// OwnershipRepository implements order.OwnershipRepository using PostgreSQL.
type OwnershipRepository struct {
	pool *pgxpool.Pool
}

// NewOwnershipRepository creates a new OwnershipRepository.
func NewOwnershipRepository(pool *pgxpool.Pool) *OwnershipRepository {
	return &OwnershipRepository{pool: pool}
}

func (r *OwnershipRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Save upserts an ownership record by identifier.
func (r *OwnershipRepository) Save(ctx context.Context, info order.OwnershipInfo) error {
	doc, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal ownership info: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO ownership_infos (id, identifier, order_number, owned_from, owned_through, document)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (identifier) DO UPDATE
		 SET owned_from = EXCLUDED.owned_from, owned_through = EXCLUDED.owned_through, document = EXCLUDED.document`,
		info.ID, info.Identifier, info.OrderNumber, info.OwnedFrom, info.OwnedThrough, doc,
	)
	if err != nil {
		return fmt.Errorf("save ownership info: %w", err)
	}
	return nil
}

// FindByOrderNumber lists the ownership records of an order.
func (r *OwnershipRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]order.OwnershipInfo, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT document FROM ownership_infos WHERE order_number = $1 ORDER BY identifier`, orderNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("find ownership infos: %w", err)
	}
	defer rows.Close()

	var infos []order.OwnershipInfo
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan ownership info: %w", err)
		}
		var info order.OwnershipInfo
		if err := json.Unmarshal(doc, &info); err != nil {
			return nil, fmt.Errorf("unmarshal ownership info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// EndByOrderNumber shortens the ownerships of an order to ownedThrough.
func (r *OwnershipRepository) EndByOrderNumber(ctx context.Context, orderNumber string, ownedThrough time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE ownership_infos
		 SET owned_through = $2, document = jsonb_set(document, '{ownedThrough}', to_jsonb($2::timestamptz))
		 WHERE order_number = $1 AND owned_through > $2`,
		orderNumber, ownedThrough,
	)
	if err != nil {
		return 0, fmt.Errorf("end ownership infos: %w", err)
	}
	return tag.RowsAffected(), nil
}
