package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
)

// Repository persists orders. Storage failures come back as
// *PersistenceError; a missing order is ErrOrderNotFound.
type Repository interface {
	CreateWithTx(ctx context.Context, tx db.Querier, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Transition(ctx context.Context, id int64, decide func(Order) (Status, error)) (*Order, Status, error)
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectOrder = `
	SELECT id, user_id, status, total_amount, delivery_address, payment_method, order_date, updated_at
	FROM orders`

// CreateWithTx inserts the header and its items on tx and fills in the
// generated ids and timestamps. The caller owns commit and rollback.
func (r *PostgresRepository) CreateWithTx(ctx context.Context, tx db.Querier, o *Order) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, total_amount, delivery_address, payment_method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_date, updated_at
	`, o.UserID, string(o.Status), o.TotalAmount, o.DeliveryAddress, o.PaymentMethod).
		Scan(&o.ID, &o.OrderDate, &o.UpdatedAt)
	if err != nil {
		return persistErr("insert order", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice).Scan(&it.ID)
		if err != nil {
			return persistErr("insert order_item", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persistErr("get order", err)
	}

	items, err := r.itemsFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns the user's orders, newest first, with their items.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE user_id = $1 ORDER BY order_date DESC, id DESC`, userID)
	if err != nil {
		return nil, persistErr("list orders", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, persistErr("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate orders", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// Transition locks the order row, asks decide for the next status and
// stores it, all in one transaction. An error from decide aborts without
// writing and is returned unchanged. The previous status is returned
// alongside the updated header.
func (r *PostgresRepository) Transition(ctx context.Context, id int64, decide func(Order) (Status, error)) (*Order, Status, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, "", persistErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrOrderNotFound
		}
		return nil, "", persistErr("lock order", err)
	}

	next, err := decide(*o)
	if err != nil {
		return nil, "", err
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(next)).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, "", persistErr("update order status", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", persistErr("commit", err)
	}

	previous := o.Status
	o.Status = next
	return o, previous, nil
}

func (r *PostgresRepository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, persistErr("query order items", err)
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, persistErr("scan order item", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate order items", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount, &o.DeliveryAddress, &o.PaymentMethod, &o.OrderDate, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}
