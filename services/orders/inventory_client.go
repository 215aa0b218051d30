package main

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/matheusmosca/order-saga/pkg/rpc"
)

// Availability é a visão do inventário sobre um produto no momento da leitura
type Availability struct {
	ID            string          `json:"id"`
	StockQuantity int             `json:"stock_quantity"`
	Price         decimal.Decimal `json:"price"`
}

// StockUpdate leva o estoque a StockQuantity baixando Quantity; o inventário impede que
// fique negativo.
type StockUpdate struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	Quantity      int    `json:"quantity,omitempty"`
}

type StockItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InventoryService é a parte da API do inventário usada pela saga
type InventoryService interface {
	CheckBulkAvailability(ctx context.Context, productIDs []string) (map[string]Availability, error)
	BulkUpdateInventory(ctx context.Context, orderID string, updates []StockUpdate) error
	RestockInventory(ctx context.Context, orderID string, items []StockItem) error
}

// InventoryClient chama o serviço de inventário pelo barramento
type InventoryClient struct {
	client *rpc.Client
}

func NewInventoryClient(client *rpc.Client) *InventoryClient {
	return &InventoryClient{client: client}
}

func (c *InventoryClient) CheckBulkAvailability(ctx context.Context, productIDs []string) (map[string]Availability, error) {
	var availability map[string]Availability
	err := c.client.Call(ctx, "checkBulkAvailability", map[string]any{
		"product_ids": productIDs,
		"flatten":     true,
	}, &availability)
	if err != nil {
		return nil, err
	}
	return availability, nil
}

func (c *InventoryClient) BulkUpdateInventory(ctx context.Context, orderID string, updates []StockUpdate) error {
	return c.client.Call(ctx, "bulkUpdateInventory", map[string]any{
		"order_id": orderID,
		"updates":  updates,
	}, nil)
}

func (c *InventoryClient) RestockInventory(ctx context.Context, orderID string, items []StockItem) error {
	return c.client.Call(ctx, "restockInventory", map[string]any{
		"order_id": orderID,
		"items":    items,
	}, nil)
}
