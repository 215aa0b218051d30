package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/rpc"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// OrderUseCase contém a saga de criação de pedidos e as consultas de pedidos
type OrderUseCase struct {
	repository  Repository
	inventory   InventoryService
	tracer      trace.Tracer
	logger      *zap.Logger
	sagaResults metric.Int64Counter
	inflight    singleflight.Group
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	inventory InventoryService,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *zap.Logger,
) *OrderUseCase {
	sagaResults, err := meter.Int64Counter(
		"orders.saga.results",
		metric.WithDescription("Order creation sagas by result status"),
	)
	if err != nil {
		sagaResults = noop.Int64Counter{}
	}

	return &OrderUseCase{
		repository:  repository,
		inventory:   inventory,
		tracer:      tracer,
		logger:      logger,
		sagaResults: sagaResults,
	}
}

// CreateOrder reserva o estoque dos itens, calcula o preço a partir do inventário e
// persiste o pedido. O pedido só é commitado depois da baixa de estoque; se o commit
// falhar, o estoque é devolvido (compensação).
// Com OrderID informado a operação é idempotente: tentativas simultâneas compartilham
// a mesma saga e repetições posteriores recebem o pedido já gravado.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, req CreateOrderRequest) Result {
	ctx, span := uc.tracer.Start(ctx, "create_order_saga")
	defer span.End()

	result := uc.createOrder(ctx, req)

	span.SetAttributes(attribute.String("saga.status", result.Status))
	if result.Status != StatusCreated {
		span.SetStatus(codes.Error, result.Message)
	}
	uc.sagaResults.Add(ctx, 1, metric.WithAttributes(attribute.String("status", result.Status)))
	return result
}

func (uc *OrderUseCase) createOrder(ctx context.Context, req CreateOrderRequest) Result {
	if err := validateOrder(req); err != nil {
		return Failure(StatusBadRequest, err.Error())
	}
	if req.OrderID == "" {
		return uc.runSaga(ctx, req, uuid.New().String())
	}

	ch := uc.inflight.DoChan(req.OrderID, func() (any, error) {
		return uc.replayOrRun(context.WithoutCancel(ctx), req), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			logging.FromContext(ctx, uc.logger).Info("🔁 [CREATE ORDER] joined in-flight saga", zap.String("order_id", req.OrderID))
		}
		return res.Val.(Result)
	case <-ctx.Done():
		return Failure(StatusUnavailable, "Order "+req.OrderID+" is still being processed")
	}
}

// replayOrRun devolve o pedido já gravado com o mesmo ID ou executa a saga
func (uc *OrderUseCase) replayOrRun(ctx context.Context, req CreateOrderRequest) Result {
	existing, err := uc.repository.GetOrder(ctx, req.OrderID)
	switch {
	case err == nil:
		logging.FromContext(ctx, uc.logger).Info("🔁 [CREATE ORDER] replayed", zap.String("order_id", existing.ID))
		return Success(StatusCreated, existing)
	case !errors.Is(err, ErrOrderNotFound):
		return uc.storeFailure(ctx, err, "Failed to create order")
	}
	return uc.runSaga(ctx, req, req.OrderID)
}

func (uc *OrderUseCase) runSaga(ctx context.Context, req CreateOrderRequest, orderID string) Result {
	log := logging.FromContext(ctx, uc.logger).With(zap.String("order_id", orderID))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order_id", orderID))

	// 1. Disponibilidade dos produtos distintos, indexada por ID
	productIDs := distinctProductIDs(req.Items)
	log.Info("➡️ [CREATE ORDER] checking availability", zap.Strings("product_ids", productIDs))

	availability, err := uc.inventory.CheckBulkAvailability(ctx, productIDs)
	if err != nil {
		log.Warn("❌ [CREATE ORDER] availability check failed", zap.Error(err))
		return rpcFailure(err, StatusUnavailable)
	}

	// 2. Regra de Negócio: viabilidade e preço, nada é alterado em caso de rejeição
	plan, err := reserve(req.Items, availability)
	if err != nil {
		log.Info("❌ [CREATE ORDER] rejected", zap.Error(err))
		if errors.Is(err, ErrProductNotFound) {
			return Failure(StatusNotFound, err.Error())
		}
		return Failure(StatusConflict, err.Error())
	}

	order := NewOrder(req.Customer, plan.items, plan.total)
	order.ID = orderID

	// 3. Inicia a transação e grava o pedido PENDING
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		log.Error("❌ [CREATE ORDER] failed to begin transaction", zap.Error(err))
		return Failure(StatusConflict, "Failed to create order")
	}
	if err := uc.repository.CreateOrder(ctx, tx, order); err != nil {
		uc.rollback(ctx, tx, log)
		if errors.Is(err, ErrOrderExists) {
			// Outra réplica gravou o mesmo pedido primeiro
			if stored, err := uc.repository.GetOrder(ctx, orderID); err == nil {
				log.Info("🔁 [CREATE ORDER] created by another attempt")
				return Success(StatusCreated, stored)
			}
		}
		log.Error("❌ [CREATE ORDER] failed to insert order", zap.Error(err))
		return Failure(StatusConflict, "Failed to create order")
	}

	// 4. Uma única baixa atômica de estoque para o pedido inteiro
	if err := uc.inventory.BulkUpdateInventory(ctx, order.ID, plan.updates); err != nil {
		log.Warn("❌ [CREATE ORDER] stock update failed", zap.Error(err))
		uc.rollback(ctx, tx, log)
		if rpc.CodeOf(err) == "" {
			// A baixa pode ter sido aplicada antes da resposta se perder
			uc.compensate(ctx, order.ID, plan.restock, log)
		}
		return rpcFailure(err, StatusConflict)
	}

	// 5. Commit da transação, ou devolve o estoque
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		log.Error("❌ [CREATE ORDER] commit failed", zap.Error(err))
		uc.compensate(ctx, order.ID, plan.restock, log)
		return Failure(StatusConflict, "Failed to persist order")
	}

	log.Info("✅ [CREATE ORDER] created",
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	return Success(StatusCreated, order)
}

func (uc *OrderUseCase) rollback(ctx context.Context, tx Tx, log *zap.Logger) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Warn("⚠️ [CREATE ORDER] rollback failed", zap.Error(err))
	}
}

// compensate devolve o estoque reservado (compensação). O inventário ignora a chamada
// quando nada foi reservado para orderID.
func (uc *OrderUseCase) compensate(ctx context.Context, orderID string, items []StockItem, log *zap.Logger) {
	ctx, span := uc.tracer.Start(context.WithoutCancel(ctx), "compensate_stock")
	defer span.End()

	log.Info("↩️ [COMPENSATE STOCK] restocking", zap.Int("items", len(items)))
	if err := uc.inventory.RestockInventory(ctx, orderID, items); err != nil {
		span.RecordError(err)
		log.Error("❌ [COMPENSATE STOCK] failed, stock must be reconciled", zap.Error(err))
		return
	}
	log.Info("♻️ [COMPENSATE STOCK] stock returned")
}

// ListOrders retorna uma página de pedidos, do mais recente ao mais antigo
func (uc *OrderUseCase) ListOrders(ctx context.Context, page, limit int) Result {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset := math.MaxInt
	if page-1 <= math.MaxInt/limit {
		offset = (page - 1) * limit
	}

	orders, total, err := uc.repository.ListOrders(ctx, limit, offset)
	if err != nil {
		logging.FromContext(ctx, uc.logger).Error("❌ [LIST ORDERS] failed", zap.Error(err))
		return Failure(StatusUnavailable, "Failed to list orders")
	}
	return Success(StatusOK, NewOrderPage(orders, total, page, limit))
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string) Result {
	if strings.TrimSpace(orderID) == "" {
		return Failure(StatusBadRequest, "order id is required")
	}

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return uc.storeFailure(ctx, err, "Failed to get order")
	}
	return Success(StatusOK, order)
}

// UpdateOrderStatus sobrescreve o status de um pedido. Qualquer status válido pode
// suceder qualquer outro.
func (uc *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, status string) Result {
	log := logging.FromContext(ctx, uc.logger).With(zap.String("order_id", orderID))

	if strings.TrimSpace(orderID) == "" {
		return Failure(StatusBadRequest, "order id is required")
	}
	if !ValidStatus(status) {
		return Failure(StatusBadRequest, fmt.Sprintf("invalid status %q", status))
	}

	order, err := uc.repository.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return uc.storeFailure(ctx, err, "Failed to update order status")
	}

	log.Info("✅ [UPDATE STATUS] updated", zap.String("status", status))
	return Success(StatusOK, order)
}

func (uc *OrderUseCase) storeFailure(ctx context.Context, err error, message string) Result {
	if errors.Is(err, ErrOrderNotFound) {
		return Failure(StatusNotFound, err.Error())
	}
	logging.FromContext(ctx, uc.logger).Error("❌ "+message, zap.Error(err))
	return Failure(StatusUnavailable, message)
}

// reservation é o resultado de avaliar um pedido contra o snapshot de disponibilidade
type reservation struct {
	items   []OrderItem
	total   decimal.Decimal
	updates []StockUpdate
	restock []StockItem
}

// reserve precifica cada item e o compara com o estoque que sobrou dos itens anteriores.
// Produtos inexistentes são reportados antes de qualquer falta de estoque; fora isso,
// falha o primeiro item sem estoque. updates tem uma entrada por produto, na ordem em
// que aparecem.
func reserve(items []OrderItem, availability map[string]Availability) (reservation, error) {
	productIDs := distinctProductIDs(items)
	remaining := make(map[string]int, len(productIDs))
	ordered := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		a, ok := availability[id]
		if !ok {
			return reservation{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		remaining[id] = a.StockQuantity
	}

	res := reservation{
		items: make([]OrderItem, 0, len(items)),
		total: decimal.Zero,
	}
	for _, item := range items {
		a := availability[item.ProductID]
		remaining[item.ProductID] -= item.Quantity
		if remaining[item.ProductID] < 0 {
			return reservation{}, fmt.Errorf("%w for product %s", ErrInsufficientStock, item.ProductID)
		}
		ordered[item.ProductID] += item.Quantity

		item.Price = a.Price
		res.items = append(res.items, item)
		res.total = res.total.Add(a.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	for _, id := range productIDs {
		res.updates = append(res.updates, StockUpdate{
			ProductID:     id,
			StockQuantity: remaining[id],
			Quantity:      ordered[id],
		})
		res.restock = append(res.restock, StockItem{ProductID: id, Quantity: ordered[id]})
	}
	return res, nil
}

func distinctProductIDs(items []OrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func validateOrder(req CreateOrderRequest) error {
	if req.OrderID != "" {
		if _, err := uuid.Parse(req.OrderID); err != nil {
			return fmt.Errorf("%w: order_id must be a UUID", ErrInvalidInput)
		}
	}
	switch {
	case strings.TrimSpace(req.Customer.Name) == "":
		return fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	case strings.TrimSpace(req.Customer.Email) == "":
		return fmt.Errorf("%w: customer email is required", ErrInvalidInput)
	case strings.TrimSpace(req.Customer.ShippingAddress) == "":
		return fmt.Errorf("%w: shipping address is required", ErrInvalidInput)
	case len(req.Items) == 0:
		return fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item without product_id", ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity of %s must be positive", ErrInvalidInput, item.ProductID)
		}
	}
	return nil
}

// rpcFailure converte um erro da chamada ao inventário em resultado da saga. fallback
// vale para erros sem código remoto.
func rpcFailure(err error, fallback string) Result {
	switch {
	case errors.Is(err, rpc.ErrUnavailable):
		return Failure(StatusUnavailable, "Inventory service unavailable: "+err.Error())
	case errors.Is(err, rpc.ErrEmptyReply):
		return Failure(StatusNotFound, "No response received from inventory")
	}

	switch rpc.CodeOf(err) {
	case rpc.CodeNotFound:
		return Failure(StatusNotFound, rpc.MessageOf(err))
	case rpc.CodeBadRequest:
		return Failure(StatusBadRequest, rpc.MessageOf(err))
	case rpc.CodeConflict, rpc.CodeInternal, rpc.CodeUnknownPattern:
		return Failure(StatusConflict, rpc.MessageOf(err))
	}
	return Failure(fallback, err.Error())
}
