package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promo/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, items, total, discounts, promotion)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at`

	getOrderSQL = `SELECT id, items, total, discounts, promotion, created_at
	FROM orders WHERE id = $1`
)

// ErrOrderNotFound is returned by Get for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists o and sets its creation time. Items are stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, order.MarshalItems(o.Items), o.Total, o.Discounts, o.Promotion,
	).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns a stored order.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &items, &o.Total, &o.Discounts, &o.Promotion, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	if o.Items, err = order.UnmarshalItems(items); err != nil {
		return nil, errors.Wrapf(err, "order %q", id)
	}
	return &o, nil
}
