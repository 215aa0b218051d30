package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/rpc"
	"github.com/matheusmosca/order-saga/pkg/tracing"
)

// MockRepository stands in for the order store.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) BeginTx(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(Tx), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CreateOrder(ctx context.Context, tx Tx, order *Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, limit, offset int) ([]Order, int, error) {
	args := m.Called(ctx, limit, offset)
	if o := args.Get(0); o != nil {
		return o.([]Order), args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, orderID, status string) (*Order, error) {
	args := m.Called(ctx, orderID, status)
	if o := args.Get(0); o != nil {
		return o.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTx stands in for an open order store transaction.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type restockCall struct {
	OrderID string
	Items   []StockItem
}

// fakeInventory is an in-memory inventory service reachable over rpc.LocalTransport.
type fakeInventory struct {
	mu        sync.Mutex
	stock     map[string]int
	prices    map[string]decimal.Decimal
	bulkErr   *rpc.Error
	bulkCalls [][]StockUpdate
	restocks  []restockCall
	traceIDs  []string
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		stock:  make(map[string]int),
		prices: make(map[string]decimal.Decimal),
	}
}

func (f *fakeInventory) add(id string, stock int, price string) *fakeInventory {
	f.stock[id] = stock
	f.prices[id] = decimal.RequireFromString(price)
	return f
}

func (f *fakeInventory) stockOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

func (f *fakeInventory) server() *rpc.Server {
	srv := rpc.NewServer("inventory-service", zap.NewNop())

	srv.Handle("checkBulkAvailability", func(ctx context.Context, data json.RawMessage) (any, error) {
		var req struct {
			ProductIDs []string `json:"product_ids"`
			Flatten    bool     `json:"flatten"`
		}
		if err := rpc.Bind(data, &req); err != nil {
			return nil, err
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.traceIDs = append(f.traceIDs, tracing.TraceIDFromContext(ctx))
		out := make(map[string]Availability)
		for _, id := range req.ProductIDs {
			if stock, ok := f.stock[id]; ok {
				out[id] = Availability{ID: id, StockQuantity: stock, Price: f.prices[id]}
			}
		}
		return out, nil
	})

	srv.Handle("bulkUpdateInventory", func(ctx context.Context, data json.RawMessage) (any, error) {
		var req struct {
			OrderID string        `json:"order_id"`
			Updates []StockUpdate `json:"updates"`
		}
		if err := rpc.Bind(data, &req); err != nil {
			return nil, err
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.bulkCalls = append(f.bulkCalls, req.Updates)
		if f.bulkErr != nil {
			return nil, f.bulkErr
		}
		for _, u := range req.Updates {
			if f.stock[u.ProductID] < u.Quantity {
				return nil, rpc.Errorf(rpc.CodeConflict, "insufficient stock for product %s", u.ProductID)
			}
		}
		for _, u := range req.Updates {
			f.stock[u.ProductID] -= u.Quantity
		}
		return map[string]bool{"success": true}, nil
	})

	srv.Handle("restockInventory", func(ctx context.Context, data json.RawMessage) (any, error) {
		var req struct {
			OrderID string      `json:"order_id"`
			Items   []StockItem `json:"items"`
		}
		if err := rpc.Bind(data, &req); err != nil {
			return nil, err
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.restocks = append(f.restocks, restockCall{OrderID: req.OrderID, Items: req.Items})
		for _, item := range req.Items {
			f.stock[item.ProductID] += item.Quantity
		}
		return map[string]bool{"success": true}, nil
	})

	return srv
}

// faultyTransport fails the attempts selected by fail with a transport error.
type faultyTransport struct {
	next  rpc.Transport
	mu    sync.Mutex
	calls map[string]int
	fail  func(pattern string, call int) bool
}

func newFaultyTransport(next rpc.Transport, fail func(pattern string, call int) bool) *faultyTransport {
	return &faultyTransport{next: next, calls: make(map[string]int), fail: fail}
}

func (t *faultyTransport) Send(ctx context.Context, req rpc.Request) (rpc.Reply, error) {
	t.mu.Lock()
	t.calls[req.Pattern]++
	n := t.calls[req.Pattern]
	t.mu.Unlock()

	if t.fail(req.Pattern, n) {
		return rpc.Reply{}, rpc.ErrTransport
	}
	return t.next.Send(ctx, req)
}

func (t *faultyTransport) callsTo(pattern string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[pattern]
}

func newInventoryClient(transport rpc.Transport) *InventoryClient {
	cfg := rpc.Config{MaxAttempts: 3, RetryDelay: 0, Timeout: time.Second}
	return NewInventoryClient(rpc.NewClient("inventory-service", transport, cfg, zap.NewNop()))
}

func newTestUseCase(repo Repository, inventory InventoryService) *OrderUseCase {
	return NewOrderUseCase(
		repo,
		inventory,
		noop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
		zap.NewNop(),
	)
}

func sampleCustomer() Customer {
	return Customer{Name: "Ada", Email: "ada@example.com", ShippingAddress: "1 Main St"}
}

// expectOrderTx prepares a repository whose transaction accepts the insert.
func expectOrderTx(t *testing.T) (*MockRepository, *MockTx) {
	t.Helper()
	repo := new(MockRepository)
	tx := new(MockTx)
	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("CreateOrder", mock.Anything, tx, mock.AnythingOfType("*main.Order")).Return(nil)
	return repo, tx
}

// slowTransport delays every request before handing it on.
type slowTransport struct {
	next  rpc.Transport
	delay time.Duration
}

func (t slowTransport) Send(ctx context.Context, req rpc.Request) (rpc.Reply, error) {
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return rpc.Reply{}, rpc.ErrTimeout
	case <-timer.C:
	}
	return t.next.Send(ctx, req)
}
