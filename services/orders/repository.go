package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository define a interface para operações de banco de dados de pedidos
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// CreateOrder cria o cliente e o pedido dentro de tx. Um ID de pedido já gravado falha
	// com ErrOrderExists, depois que um insert concorrente do mesmo ID for commitado.
	CreateOrder(ctx context.Context, tx Tx, order *Order) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListOrders busca limit pedidos a partir de offset, mais recentes primeiro, e o total
	ListOrders(ctx context.Context, limit, offset int) ([]Order, int, error)

	// UpdateOrderStatus atualiza o status de um pedido e retorna o pedido atualizado
	UpdateOrderStatus(ctx context.Context, orderID, status string) (*Order, error)
}

// Tx interface para transações
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS customers (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL,
	shipping_address TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, `
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	customer_id  TEXT NOT NULL REFERENCES customers (id),
	items        JSONB NOT NULL,
	total_amount NUMERIC(12,2) NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, `
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC)`,
}

const uniqueViolation = "23505"

const orderSelect = `
	SELECT o.id, o.items, o.total_amount::text, o.status, o.created_at, o.updated_at,
	       c.id, c.name, c.email, c.shipping_address
	FROM orders o
	JOIN customers c ON c.id = o.customer_id`

// OrderRepository implementa Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

// EnsureSchema cria as tabelas de pedidos se não existirem
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PostgresTx implementa Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *PostgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (r *OrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	pgTx := tx.(*PostgresTx).tx

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	_, err = pgTx.Exec(ctx, `
		INSERT INTO customers (id, name, email, shipping_address)
		VALUES ($1, $2, $3, $4)
	`, order.Customer.ID, order.Customer.Name, order.Customer.Email, order.Customer.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	_, err = pgTx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, items, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4::text::numeric, $5, $6, $7)
	`, order.ID, order.Customer.ID, string(items), order.TotalAmount.String(), order.Status, order.CreatedAt, order.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrOrderExists, order.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, err
}

func (r *OrderRepository) ListOrders(ctx context.Context, limit, offset int) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.Query(ctx, orderSelect+`
		ORDER BY o.created_at DESC, o.id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *order)
	}
	return orders, total, rows.Err()
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID, status string) (*Order, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return r.GetOrder(ctx, orderID)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o     Order
		items []byte
		total string
	)
	err := row.Scan(&o.ID, &items, &total, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.ShippingAddress)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total of order %s: %w", o.ID, err)
	}
	return &o, nil
}
