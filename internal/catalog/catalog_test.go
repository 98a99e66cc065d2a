package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "name", "description", "price", "image_url", "category_id", "is_available", "created_at"}

type fakeRepo struct {
	products map[int64]Product
	err      error
}

func (f *fakeRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func menu() *fakeRepo {
	return &fakeRepo{products: map[int64]Product{
		1: {ID: 1, Name: "Margherita", Price: decimal.RequireFromString("10.00"), IsAvailable: true},
		2: {ID: 2, Name: "Tiramisu", Price: decimal.RequireFromString("6.50"), IsAvailable: true},
		3: {ID: 3, Name: "Seasonal Soup", Price: decimal.RequireFromString("4.25"), IsAvailable: false},
	}}
}

func TestResolveStrict_AllAvailable(t *testing.T) {
	got, err := ResolveStrict(context.Background(), menu(), []int64{2, 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tiramisu", got[2].Name)
	assert.True(t, got[1].Price.Equal(decimal.RequireFromString("10")))
}

func TestResolveStrict_Unavailable(t *testing.T) {
	_, err := ResolveStrict(context.Background(), menu(), []int64{1, 3})
	require.ErrorIs(t, err, ErrProductUnavailable)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int64(3), ue.ProductID)
	assert.False(t, ue.Missing)
}

func TestResolveStrict_MissingReportsFirstInRequestOrder(t *testing.T) {
	_, err := ResolveStrict(context.Background(), menu(), []int64{1, 99, 3})

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int64(99), ue.ProductID)
	assert.True(t, ue.Missing)
	assert.Contains(t, err.Error(), "99")
}

func TestResolveTolerant(t *testing.T) {
	got, err := ResolveTolerant(context.Background(), menu(), []int64{1, 3, 99})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].IsAvailable)
	assert.False(t, got[3].IsAvailable)
	_, ok := got[99]
	assert.False(t, ok)
}

func TestResolve_PropagatesStorageError(t *testing.T) {
	boom := errors.New("db down")
	_, err := ResolveTolerant(context.Background(), &fakeRepo{err: boom}, []int64{1})
	require.ErrorIs(t, err, boom)
	_, err = ResolveStrict(context.Background(), &fakeRepo{err: boom}, []int64{1})
	require.ErrorIs(t, err, boom)
}

func TestPostgresRepository_GetByIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cat := int64(4)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ANY($1)`)).
		WithArgs([]int64{1, 2}).
		WillReturnRows(mock.NewRows(productCols).
			AddRow(int64(1), "Margherita", "", decimal.RequireFromString("10.00"), "", &cat, true, now).
			AddRow(int64(2), "Tiramisu", "sweet", decimal.RequireFromString("6.50"), "", nil, false, now))

	got, err := NewPostgresRepository(mock).GetByIDs(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Margherita", got[1].Name)
	require.NotNil(t, got[1].CategoryID)
	assert.Equal(t, int64(4), *got[1].CategoryID)
	assert.Nil(t, got[2].CategoryID)
	assert.False(t, got[2].IsAvailable)
	assert.True(t, got[2].Price.Equal(decimal.RequireFromString("6.5")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDs_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	got, err := NewPostgresRepository(mock).GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
