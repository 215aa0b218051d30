package main

import (
	"context"
	"encoding/json"

	"github.com/matheusmosca/order-saga/pkg/rpc"
)

// Patterns atendidos pelo serviço de pedidos
const (
	PatternCreateOrder       = "createOrder"
	PatternListOrders        = "listOrders"
	PatternGetOrderDetails   = "getOrderDetails"
	PatternUpdateOrderStatus = "updateOrderStatus"
)

// OrderUseCaseInterface define a interface para o use case
type OrderUseCaseInterface interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) Result
	ListOrders(ctx context.Context, page, limit int) Result
	GetOrder(ctx context.Context, orderID string) Result
	UpdateOrderStatus(ctx context.Context, orderID, status string) Result
}

// OrderHandler responde todo pattern com um Result, nunca com erro rpc
type OrderHandler struct {
	useCase OrderUseCaseInterface
}

func NewOrderHandler(useCase OrderUseCaseInterface) *OrderHandler {
	return &OrderHandler{useCase: useCase}
}

func (h *OrderHandler) Register(srv *rpc.Server) {
	srv.Handle(PatternCreateOrder, h.CreateOrder)
	srv.Handle(PatternListOrders, h.ListOrders)
	srv.Handle(PatternGetOrderDetails, h.GetOrderDetails)
	srv.Handle(PatternUpdateOrderStatus, h.UpdateOrderStatus)
}

func (h *OrderHandler) CreateOrder(ctx context.Context, data json.RawMessage) (any, error) {
	var req CreateOrderRequest
	if err := rpc.Bind(data, &req); err != nil {
		return badRequest(err), nil
	}
	return h.useCase.CreateOrder(ctx, req), nil
}

func (h *OrderHandler) ListOrders(ctx context.Context, data json.RawMessage) (any, error) {
	var req ListOrdersRequest
	if len(data) > 0 {
		if err := rpc.Bind(data, &req); err != nil {
			return badRequest(err), nil
		}
	}
	return h.useCase.ListOrders(ctx, req.Page, req.Limit), nil
}

func (h *OrderHandler) GetOrderDetails(ctx context.Context, data json.RawMessage) (any, error) {
	var req GetOrderRequest
	if err := rpc.Bind(data, &req); err != nil {
		return badRequest(err), nil
	}
	return h.useCase.GetOrder(ctx, req.ID), nil
}

func (h *OrderHandler) UpdateOrderStatus(ctx context.Context, data json.RawMessage) (any, error) {
	var req UpdateStatusRequest
	if err := rpc.Bind(data, &req); err != nil {
		return badRequest(err), nil
	}
	return h.useCase.UpdateOrderStatus(ctx, req.ID, req.Status), nil
}

func badRequest(err error) Result {
	return Failure(StatusBadRequest, rpc.MessageOf(err))
}
