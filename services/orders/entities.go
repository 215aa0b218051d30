package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExists       = errors.New("order already exists")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// Status possíveis de um pedido
const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
)

// ValidStatus informa se status é um dos status de pedido
func ValidStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type Customer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address"`
}

// OrderItem é uma linha do pedido. Price vem do inventário; o valor enviado pelo cliente é ignorado
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID          string          `json:"id"`
	Customer    Customer        `json:"customer"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewOrder cria uma nova instância de Order, PENDING e com um novo cliente
func NewOrder(customer Customer, items []OrderItem, total decimal.Decimal) *Order {
	now := time.Now()
	customer.ID = uuid.New().String()
	return &Order{
		ID:          uuid.New().String(),
		Customer:    customer,
		Items:       items,
		TotalAmount: total,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// OrderPage é uma página de pedidos, mais recentes primeiro
type OrderPage struct {
	Data       []Order `json:"data"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}

func NewOrderPage(orders []Order, total, page, limit int) OrderPage {
	if orders == nil {
		orders = []Order{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return OrderPage{
		Data:       orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// Status de resultado de todas as operações de pedido
const (
	StatusCreated     = "CREATED"
	StatusOK          = "OK"
	StatusConflict    = "CONFLICT"
	StatusNotFound    = "NOT_FOUND"
	StatusBadRequest  = "BAD_REQUEST"
	StatusUnavailable = "UNAVAILABLE"
)

// Result é a resposta de uma operação de pedido: Data no sucesso, Message caso contrário
type Result struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(status string, data any) Result {
	return Result{Status: status, Data: data}
}

func Failure(status, message string) Result {
	return Result{Status: status, Message: message}
}

// Payloads recebidos pelo barramento

// CreateOrderRequest pode informar o ID do pedido a criar. Repetir a requisição com o
// mesmo OrderID retorna o pedido criado pela primeira.
type CreateOrderRequest struct {
	OrderID  string      `json:"order_id,omitempty"`
	Customer Customer    `json:"customer"`
	Items    []OrderItem `json:"items"`
}

type ListOrdersRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
