package catalog

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
)

type Repository interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
}

// PostgresRepository reads products through any db.Querier, which lets the
// order path bind it to an open transaction with WithQuerier.
type PostgresRepository struct {
	q db.Querier
}

func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

func (r *PostgresRepository) WithQuerier(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

const productColumns = `id, name, description, price, image_url, category_id, is_available, created_at`

// GetByIDs loads every requested product in one statement. Ids with no row
// are simply absent from the result.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CategoryID, &p.IsAvailable, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}
