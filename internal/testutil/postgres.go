package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
)

const (
	dbUser     = "food_user"
	dbPassword = "food_pass"
	dbName     = "food_orders"
)

// StartPostgres launches a temporary Postgres container, applies the embedded
// migrations and returns a connected pool. The container and pool are torn
// down via t.Cleanup.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	skipIfUnavailable(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))))

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func skipIfUnavailable(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// SeedUser inserts a user and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
		email, email,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// SeedProduct inserts a product with a decimal price given as text, e.g. "12.50".
func SeedProduct(t *testing.T, pool *pgxpool.Pool, name, price string, available bool) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (name, price, is_available) VALUES ($1, $2, $3) RETURNING id`,
		name, decimal.RequireFromString(price), available,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
