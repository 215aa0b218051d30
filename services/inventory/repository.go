package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository define a interface para operações de banco de dados de inventário
type InventoryRepository interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	GetAvailabilities(ctx context.Context, productIDs []string) ([]Availability, error)
	CreateProduct(ctx context.Context, product *Product) error
	UpdateProduct(ctx context.Context, productID string, changes ProductChanges) (*Product, error)
	// BulkUpdateStock aplica todas as atualizações numa transação, ou nenhuma. Um orderID
	// não vazio torna a chamada idempotente para aquele pedido.
	BulkUpdateStock(ctx context.Context, orderID string, updates []StockUpdate) error
	// IncreaseStock devolve todos os itens numa transação, ou nenhum. Com orderID só
	// desfaz uma reserva feita para aquele pedido, no máximo uma vez.
	IncreaseStock(ctx context.Context, orderID string, items []StockItem) error
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	description    TEXT NOT NULL DEFAULT '',
	price          NUMERIC(10,2) NOT NULL CHECK (price >= 0),
	stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
	image_url      TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, `
CREATE TABLE IF NOT EXISTS stock_movements (
	order_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (order_id, kind)
)`,
}

const uniqueViolation = "23505"

const productColumns = `id, name, description, price::text, stock_quantity, image_url, is_active, created_at, updated_at`

// PostgresInventoryRepository implementa InventoryRepository usando PostgreSQL
type PostgresInventoryRepository struct {
	db *pgxpool.Pool
}

func NewInventoryRepository(db *pgxpool.Pool) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{db: db}
}

// EnsureSchema cria as tabelas do inventário se não existirem
func (r *PostgresInventoryRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresInventoryRepository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return product, err
}

func (r *PostgresInventoryRepository) GetAvailabilities(ctx context.Context, productIDs []string) ([]Availability, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, stock_quantity, price::text
		FROM products
		WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		var (
			a     Availability
			price string
		)
		if err := rows.Scan(&a.ID, &a.StockQuantity, &price); err != nil {
			return nil, err
		}
		if a.Price, err = parsePrice(price); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *PostgresInventoryRepository) CreateProduct(ctx context.Context, p *Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, description, price, stock_quantity, image_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)
	`, p.ID, p.Name, p.Description, p.Price.String(), p.StockQuantity, p.ImageURL, p.IsActive, p.CreatedAt, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrProductExists, p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *PostgresInventoryRepository) UpdateProduct(ctx context.Context, productID string, changes ProductChanges) (*Product, error) {
	var price *string
	if changes.Price != nil {
		s := changes.Price.String()
		price = &s
	}

	row := r.db.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = COALESCE($2, stock_quantity),
		    price          = COALESCE($3::text::numeric, price),
		    is_active      = COALESCE($4, is_active),
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING `+productColumns, productID, changes.StockQuantity, price, changes.IsActive)

	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (r *PostgresInventoryRepository) BulkUpdateStock(ctx context.Context, orderID string, updates []StockUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if orderID != "" {
		cancelled, err := hasMovement(ctx, tx, orderID, MovementRestocked)
		if err != nil {
			return err
		}
		if cancelled {
			return fmt.Errorf("%w: order %s", ErrReservationCancelled, orderID)
		}
		recorded, err := recordMovement(ctx, tx, orderID, MovementReserved)
		if err != nil {
			return err
		}
		if !recorded {
			// Já aplicado por uma entrega anterior
			return nil
		}
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		if u.Quantity > 0 {
			batch.Queue(`
				UPDATE products
				SET stock_quantity = stock_quantity - $2, updated_at = NOW()
				WHERE id = $1 AND stock_quantity >= $2
			`, u.ProductID, u.Quantity)
			continue
		}
		batch.Queue(`
			UPDATE products
			SET stock_quantity = $2, updated_at = NOW()
			WHERE id = $1
		`, u.ProductID, u.StockQuantity)
	}

	if failed, err := execBatch(ctx, tx, batch, func(i int) string { return updates[i].ProductID }); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	} else if failed != "" {
		return stockFailure(ctx, tx, failed)
	}

	return tx.Commit(ctx)
}

func (r *PostgresInventoryRepository) IncreaseStock(ctx context.Context, orderID string, items []StockItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if orderID != "" {
		recorded, err := recordMovement(ctx, tx, orderID, MovementRestocked)
		if err != nil {
			return err
		}
		if !recorded {
			return nil
		}
		reserved, err := hasMovement(ctx, tx, orderID, MovementReserved)
		if err != nil {
			return err
		}
		if !reserved {
			// Nada a desfazer. O registro ainda bloqueia uma reserva atrasada
			return tx.Commit(ctx)
		}
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			UPDATE products
			SET stock_quantity = stock_quantity + $2, updated_at = NOW()
			WHERE id = $1
		`, item.ProductID, item.Quantity)
	}

	if failed, err := execBatch(ctx, tx, batch, func(i int) string { return items[i].ProductID }); err != nil {
		return fmt.Errorf("failed to increase stock: %w", err)
	} else if failed != "" {
		return fmt.Errorf("%w: %s", ErrProductNotFound, failed)
	}

	return tx.Commit(ctx)
}

// recordMovement grava o movimento (pedido, tipo) e informa se ele é novo
func recordMovement(ctx context.Context, tx pgx.Tx, orderID, kind string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (order_id, kind)
		VALUES ($1, $2)
		ON CONFLICT (order_id, kind) DO NOTHING
	`, orderID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to record %s movement: %w", kind, err)
	}
	return tag.RowsAffected() == 1, nil
}

func hasMovement(ctx context.Context, tx pgx.Tx, orderID, kind string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM stock_movements WHERE order_id = $1 AND kind = $2)
	`, orderID, kind).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s movement: %w", kind, err)
	}
	return exists, nil
}

// execBatch executa o batch e retorna o produto do primeiro comando que não afetou linha
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, productAt func(int) string) (string, error) {
	br := tx.SendBatch(ctx, batch)
	failed := ""
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return "", err
		}
		if tag.RowsAffected() == 0 {
			failed = productAt(i)
			break
		}
	}
	return failed, br.Close()
}

// stockFailure diferencia produto inexistente de estoque insuficiente
func stockFailure(ctx context.Context, tx pgx.Tx, productID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product %s: %w", productID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return fmt.Errorf("%w for product %s", ErrInsufficientStock, productID)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = parsePrice(price); err != nil {
		return nil, err
	}
	return &p, nil
}
