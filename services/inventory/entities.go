package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrProductExists     = errors.New("product already exists")
)

// ErrReservationCancelled rejeita a reserva de um pedido já compensado
var ErrReservationCancelled = errors.New("reservation cancelled")

// Product representa um produto no inventário
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewProduct cria uma nova instância de Product, ativa e com ID gerado
func NewProduct(name, description string, price decimal.Decimal, stock int, imageURL string) *Product {
	now := time.Now()
	return &Product{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   description,
		Price:         price,
		StockQuantity: stock,
		ImageURL:      imageURL,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Availability é o snapshot de estoque e preço de um produto no momento da leitura
type Availability struct {
	ID            string          `json:"id"`
	StockQuantity int             `json:"stock_quantity"`
	Price         decimal.Decimal `json:"price"`
}

// StockUpdate define o estoque de um produto. Com Quantity positivo a escrita é a baixa
// condicional "stock - Quantity where stock >= Quantity"; StockQuantity é então o valor
// que o chamador espera como resultado.
type StockUpdate struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	Quantity      int    `json:"quantity,omitempty"`
}

// StockItem é uma quantidade de um produto devolvida ao estoque
type StockItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductChanges lista os campos opcionais da atualização de um produto
type ProductChanges struct {
	StockQuantity *int             `json:"stock_quantity,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

// Empty informa se nenhum campo seria alterado
func (c ProductChanges) Empty() bool {
	return c.StockQuantity == nil && c.Price == nil && c.IsActive == nil
}

// Tipos de movimento de estoque registrados por pedido
const (
	MovementReserved  = "reserved"
	MovementRestocked = "restocked"
)

// Payloads recebidos pelo barramento

type GetAvailabilityRequest struct {
	ProductID string `json:"product_id"`
}

type BulkAvailabilityRequest struct {
	ProductIDs []string `json:"product_ids"`
	Flatten    bool     `json:"flatten"`
}

type UpdateInventoryRequest struct {
	ProductID string `json:"product_id"`
	ProductChanges
}

// BulkUpdateRequest e RestockRequest podem informar o pedido a que pertencem. Com
// pedido informado, são aplicados no máximo uma vez por pedido.
type BulkUpdateRequest struct {
	OrderID string        `json:"order_id,omitempty"`
	Updates []StockUpdate `json:"updates"`
}

type RestockRequest struct {
	OrderID string      `json:"order_id,omitempty"`
	Items   []StockItem `json:"items"`
}

type CreateProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url"`
}

// SuccessResponse confirma uma alteração
type SuccessResponse struct {
	Success bool `json:"success"`
}
