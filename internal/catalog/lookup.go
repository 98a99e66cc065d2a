package catalog

import (
	"context"
	"errors"
	"fmt"
)

var ErrProductUnavailable = errors.New("product unavailable")

// UnavailableError names the first requested product that cannot be sold,
// either because it does not exist or because it is flagged unavailable.
type UnavailableError struct {
	ProductID int64
	Missing   bool
}

func (e *UnavailableError) Error() string {
	if e.Missing {
		return fmt.Sprintf("product %d does not exist", e.ProductID)
	}
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

func (e *UnavailableError) Unwrap() error { return ErrProductUnavailable }

// ResolveStrict requires every id to exist and be available. Ids are checked
// in the order given so the reported product is deterministic.
func ResolveStrict(ctx context.Context, repo Repository, ids []int64) (map[int64]Entry, error) {
	products, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Entry, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, &UnavailableError{ProductID: id, Missing: true}
		}
		if !p.IsAvailable {
			return nil, &UnavailableError{ProductID: id}
		}
		out[id] = p.Entry()
	}
	return out, nil
}

// ResolveTolerant returns whatever exists. Missing products are absent from
// the map and unavailable ones are returned with IsAvailable false.
func ResolveTolerant(ctx context.Context, repo Repository, ids []int64) (map[int64]Entry, error) {
	products, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Entry, len(products))
	for id, p := range products {
		out[id] = p.Entry()
	}
	return out, nil
}
