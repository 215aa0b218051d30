package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
)

// InventoryUseCase contém a lógica de negócio do inventário
type InventoryUseCase struct {
	repository InventoryRepository
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewInventoryUseCase cria uma nova instância de InventoryUseCase
func NewInventoryUseCase(repository InventoryRepository, tracer trace.Tracer, logger *zap.Logger) *InventoryUseCase {
	return &InventoryUseCase{
		repository: repository,
		tracer:     tracer,
		logger:     logger,
	}
}

// GetAvailability retorna o snapshot de estoque de um produto
func (uc *InventoryUseCase) GetAvailability(ctx context.Context, productID string) (*Availability, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	}

	product, err := uc.repository.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Availability{ID: product.ID, StockQuantity: product.StockQuantity, Price: product.Price}, nil
}

// CheckBulkAvailability lê o estoque de productIDs sem lock. O resultado segue a ordem
// da primeira aparição em productIDs; IDs desconhecidos ficam de fora.
func (uc *InventoryUseCase) CheckBulkAvailability(ctx context.Context, productIDs []string) ([]Availability, error) {
	ctx, span := uc.tracer.Start(ctx, "check_bulk_availability")
	defer span.End()

	ids := distinct(productIDs)
	span.SetAttributes(attribute.Int("product_count", len(ids)))
	if len(ids) == 0 {
		return []Availability{}, nil
	}

	found, err := uc.repository.GetAvailabilities(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := FlattenAvailability(found)
	result := make([]Availability, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

// FlattenAvailability indexa as disponibilidades pelo ID do produto
func FlattenAvailability(list []Availability) map[string]Availability {
	m := make(map[string]Availability, len(list))
	for _, a := range list {
		m[a.ID] = a
	}
	return m
}

// UpdateProduct altera estoque, preço ou flag de ativo de um produto
func (uc *InventoryUseCase) UpdateProduct(ctx context.Context, productID string, changes ProductChanges) (*Product, error) {
	log := logging.FromContext(ctx, uc.logger)

	switch {
	case strings.TrimSpace(productID) == "":
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	case changes.Empty():
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	case changes.StockQuantity != nil && *changes.StockQuantity < 0:
		return nil, fmt.Errorf("%w: stock_quantity must not be negative", ErrInvalidInput)
	case changes.Price != nil && changes.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	product, err := uc.repository.UpdateProduct(ctx, productID, changes)
	if err != nil {
		log.Error("❌ [UPDATE INVENTORY] failed", zap.String("product_id", productID), zap.Error(err))
		return nil, err
	}

	log.Info("✅ [UPDATE INVENTORY] updated",
		zap.String("product_id", productID),
		zap.Int("stock_quantity", product.StockQuantity))
	return product, nil
}

// BulkUpdate aplica todas as atualizações de estoque de forma atômica
func (uc *InventoryUseCase) BulkUpdate(ctx context.Context, orderID string, updates []StockUpdate) error {
	ctx, span := uc.tracer.Start(ctx, "bulk_update_inventory")
	defer span.End()
	log := logging.FromContext(ctx, uc.logger)

	if len(updates) == 0 {
		return fmt.Errorf("%w: no updates", ErrInvalidInput)
	}
	for _, u := range updates {
		if strings.TrimSpace(u.ProductID) == "" {
			return fmt.Errorf("%w: product_id is required", ErrInvalidInput)
		}
		if u.StockQuantity < 0 || u.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity for product %s", ErrInvalidInput, u.ProductID)
		}
	}
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.Int("update_count", len(updates)),
	)

	log.Info("➡️ [BULK UPDATE] applying stock updates", zap.String("order_id", orderID), zap.Int("count", len(updates)))
	if err := uc.repository.BulkUpdateStock(ctx, orderID, updates); err != nil {
		span.RecordError(err)
		log.Warn("❌ [BULK UPDATE] rolled back", zap.Error(err))
		return err
	}

	log.Info("✅ [BULK UPDATE] committed", zap.Int("count", len(updates)))
	return nil
}

// Restock devolve quantidades ao estoque (compensação de uma baixa cujo pedido não foi gravado)
func (uc *InventoryUseCase) Restock(ctx context.Context, orderID string, items []StockItem) error {
	ctx, span := uc.tracer.Start(ctx, "restock_inventory")
	defer span.End()
	log := logging.FromContext(ctx, uc.logger)

	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidInput)
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return fmt.Errorf("%w: restock needs a product_id and a positive quantity", ErrInvalidInput)
		}
	}

	span.SetAttributes(attribute.String("order_id", orderID))

	log.Info("↩️ [RESTOCK] returning stock", zap.String("order_id", orderID), zap.Int("count", len(items)))
	if err := uc.repository.IncreaseStock(ctx, orderID, items); err != nil {
		span.RecordError(err)
		log.Error("❌ [RESTOCK] failed", zap.Error(err))
		return err
	}

	log.Info("✅ [RESTOCK] committed", zap.Int("count", len(items)))
	return nil
}

// CreateProduct cadastra um novo produto
func (uc *InventoryUseCase) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	log := logging.FromContext(ctx, uc.logger)

	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case req.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case req.StockQuantity < 0:
		return nil, fmt.Errorf("%w: stock_quantity must not be negative", ErrInvalidInput)
	}

	product := NewProduct(req.Name, req.Description, req.Price.Round(2), req.StockQuantity, req.ImageURL)
	if err := uc.repository.CreateProduct(ctx, product); err != nil {
		log.Error("❌ [CREATE INVENTORY] failed", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	log.Info("✅ [CREATE INVENTORY] created", zap.String("product_id", product.ID))
	return product, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d, nil
}
