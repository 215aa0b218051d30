package main

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/rpc"
)

// Patterns atendidos pelo serviço de inventário
const (
	PatternGetProductAvailability = "getProductAvailability"
	PatternCheckBulkAvailability  = "checkBulkAvailability"
	PatternUpdateInventory        = "updateInventory"
	PatternBulkUpdateInventory    = "bulkUpdateInventory"
	PatternRestockInventory       = "restockInventory"
	PatternCreateInventory        = "createInventory"
)

// InventoryHandler contém os handlers do barramento
type InventoryHandler struct {
	useCase *InventoryUseCase
	logger  *zap.Logger
}

func NewInventoryHandler(useCase *InventoryUseCase, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{useCase: useCase, logger: logger}
}

// Register registra todos os patterns do inventário em srv
func (h *InventoryHandler) Register(srv *rpc.Server) {
	srv.Handle(PatternGetProductAvailability, h.GetProductAvailability)
	srv.Handle(PatternCheckBulkAvailability, h.CheckBulkAvailability)
	srv.Handle(PatternUpdateInventory, h.UpdateInventory)
	srv.Handle(PatternBulkUpdateInventory, h.BulkUpdateInventory)
	srv.Handle(PatternRestockInventory, h.RestockInventory)
	srv.Handle(PatternCreateInventory, h.CreateInventory)
}

func (h *InventoryHandler) GetProductAvailability(ctx context.Context, data json.RawMessage) (any, error) {
	var req GetAvailabilityRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("product_id", req.ProductID))

	availability, err := h.useCase.GetAvailability(ctx, req.ProductID)
	if err != nil {
		return nil, h.reject(ctx, err)
	}
	return availability, nil
}

// CheckBulkAvailability responde com uma lista na ordem pedida, ou um mapa indexado pelo
// ID do produto quando flatten está ligado.
func (h *InventoryHandler) CheckBulkAvailability(ctx context.Context, data json.RawMessage) (any, error) {
	var req BulkAvailabilityRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}

	list, err := h.useCase.CheckBulkAvailability(ctx, req.ProductIDs)
	if err != nil {
		return nil, h.reject(ctx, err)
	}
	if req.Flatten {
		return FlattenAvailability(list), nil
	}
	return list, nil
}

func (h *InventoryHandler) UpdateInventory(ctx context.Context, data json.RawMessage) (any, error) {
	var req UpdateInventoryRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("product_id", req.ProductID))

	product, err := h.useCase.UpdateProduct(ctx, req.ProductID, req.ProductChanges)
	if err != nil {
		return nil, h.reject(ctx, err)
	}
	return product, nil
}

func (h *InventoryHandler) BulkUpdateInventory(ctx context.Context, data json.RawMessage) (any, error) {
	var req BulkUpdateRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}

	if err := h.useCase.BulkUpdate(ctx, req.OrderID, req.Updates); err != nil {
		return nil, h.reject(ctx, err)
	}
	return SuccessResponse{Success: true}, nil
}

func (h *InventoryHandler) RestockInventory(ctx context.Context, data json.RawMessage) (any, error) {
	var req RestockRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}

	if err := h.useCase.Restock(ctx, req.OrderID, req.Items); err != nil {
		return nil, h.reject(ctx, err)
	}
	return SuccessResponse{Success: true}, nil
}

func (h *InventoryHandler) CreateInventory(ctx context.Context, data json.RawMessage) (any, error) {
	var req CreateProductRequest
	if err := rpc.Bind(data, &req); err != nil {
		return nil, err
	}

	product, err := h.useCase.CreateProduct(ctx, req)
	if err != nil {
		return nil, h.reject(ctx, err)
	}
	return product, nil
}

// reject converte erros de domínio em erros rpc terminais. O resto o servidor reporta
// como INTERNAL.
func (h *InventoryHandler) reject(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return rpc.NewError(rpc.CodeBadRequest, err.Error())
	case errors.Is(err, ErrProductNotFound):
		return rpc.NewError(rpc.CodeNotFound, err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrProductExists), errors.Is(err, ErrReservationCancelled):
		return rpc.NewError(rpc.CodeConflict, err.Error())
	}
	logging.FromContext(ctx, h.logger).Error("ℹ️ [INVENTORY] unexpected failure", zap.Error(err))
	return err
}
