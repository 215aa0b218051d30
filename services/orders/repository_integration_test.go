//go:build integration

package main

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newIntegrationRepository(t *testing.T) *OrderRepository {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orders_db"),
		postgres.WithUsername("root"),
		postgres.WithPassword("saga_pass"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewOrderRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func insertOrder(t *testing.T, repo *OrderRepository, createdAt time.Time, commit bool) *Order {
	t.Helper()
	ctx := context.Background()

	order := NewOrder(sampleCustomer(), []OrderItem{
		{ProductID: "A", Quantity: 2, Price: decimal.RequireFromString("25.00")},
	}, decimal.RequireFromString("50.00"))
	order.CreatedAt = createdAt
	order.UpdatedAt = createdAt

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateOrder(ctx, tx, order))
	if commit {
		require.NoError(t, tx.Commit(ctx))
	} else {
		require.NoError(t, tx.Rollback(ctx))
	}
	return order
}

func TestOrderRepository(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	older := insertOrder(t, repo, base, true)
	newer := insertOrder(t, repo, base.Add(time.Minute), true)
	discarded := insertOrder(t, repo, base.Add(2*time.Minute), false)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetOrder(ctx, older.ID)

		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Customer.Name)
		assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(50)))
		require.Len(t, got.Items, 1)
		assert.True(t, got.Items[0].Price.Equal(decimal.NewFromInt(25)))
	})

	t.Run("rolled back order is absent", func(t *testing.T) {
		_, err := repo.GetOrder(ctx, discarded.ID)

		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		orders, total, err := repo.ListOrders(ctx, 1, 0)

		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, orders, 1)
		assert.Equal(t, newer.ID, orders[0].ID)

		orders, _, err = repo.ListOrders(ctx, 10, 10)
		require.NoError(t, err)
		assert.Empty(t, orders)

		orders, total, err = repo.ListOrders(ctx, 100, math.MaxInt)
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.Equal(t, 2, total)
	})

	t.Run("duplicate order id", func(t *testing.T) {
		again := NewOrder(sampleCustomer(), older.Items, older.TotalAmount)
		again.ID = older.ID

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		err = repo.CreateOrder(ctx, tx, again)
		require.NoError(t, tx.Rollback(ctx))

		assert.ErrorIs(t, err, ErrOrderExists)
	})

	t.Run("update status", func(t *testing.T) {
		got, err := repo.UpdateOrderStatus(ctx, older.ID, OrderStatusShipped)

		require.NoError(t, err)
		assert.Equal(t, OrderStatusShipped, got.Status)

		_, err = repo.UpdateOrderStatus(ctx, "missing", OrderStatusShipped)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
