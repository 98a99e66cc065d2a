// Package sequence hands out per-order event sequence numbers so consumers
// can detect gaps and reordering on the events of a single order.
package sequence

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
)

type Counter struct {
	q db.Querier
}

func NewCounter(q db.Querier) *Counter {
	return &Counter{q: q}
}

// Next increments the order's counter and returns the new value; the first
// event of an order gets 1. The upsert makes concurrent callers serialize on
// the order's row.
func (c *Counter) Next(ctx context.Context, orderID int64) (int64, error) {
	var seq int64
	err := c.q.QueryRow(ctx, `
		INSERT INTO order_event_sequences AS s (order_id, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (order_id)
		DO UPDATE SET last_sequence = s.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, orderID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next event sequence for order %d: %w", orderID, err)
	}
	return seq, nil
}
