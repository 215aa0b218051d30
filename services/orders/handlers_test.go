package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/rpc"
)

type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) CreateOrder(ctx context.Context, req CreateOrderRequest) Result {
	return m.Called(ctx, req).Get(0).(Result)
}

func (m *MockOrderUseCase) ListOrders(ctx context.Context, page, limit int) Result {
	return m.Called(ctx, page, limit).Get(0).(Result)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, orderID string) Result {
	return m.Called(ctx, orderID).Get(0).(Result)
}

func (m *MockOrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, status string) Result {
	return m.Called(ctx, orderID, status).Get(0).(Result)
}

func dispatch(t *testing.T, uc OrderUseCaseInterface, pattern, payload string) Result {
	t.Helper()
	srv := rpc.NewServer("orders-service", zap.NewNop())
	NewOrderHandler(uc).Register(srv)

	rep := srv.Dispatch(context.Background(), rpc.Request{ID: "1", Pattern: pattern, Data: json.RawMessage(payload)})
	require.Nil(t, rep.Error)

	var result Result
	require.NoError(t, json.Unmarshal(rep.Data, &result))
	return result
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	uc := new(MockOrderUseCase)
	uc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req CreateOrderRequest) bool {
		return req.OrderID == "o-1" && req.Customer.Email == "ada@example.com" && len(req.Items) == 1 && req.Items[0].Quantity == 2
	})).Return(Success(StatusCreated, map[string]string{"id": "o-1"}))

	result := dispatch(t, uc, PatternCreateOrder,
		`{"order_id":"o-1","customer":{"name":"Ada","email":"ada@example.com","shipping_address":"1 Main St"},"items":[{"product_id":"A","quantity":2}]}`)

	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, map[string]any{"id": "o-1"}, result.Data)
}

func TestOrderHandler_MalformedPayloadIsTaggedResult(t *testing.T) {
	uc := new(MockOrderUseCase)

	result := dispatch(t, uc, PatternCreateOrder, `{"items":"A"}`)

	assert.Equal(t, StatusBadRequest, result.Status)
	assert.NotEmpty(t, result.Message)
	uc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestOrderHandler_ListOrders(t *testing.T) {
	uc := new(MockOrderUseCase)
	uc.On("ListOrders", mock.Anything, 2, 5).Return(Success(StatusOK, NewOrderPage(nil, 6, 2, 5)))

	result := dispatch(t, uc, PatternListOrders, `{"page":2,"limit":5}`)

	assert.Equal(t, StatusOK, result.Status)
	data := result.Data.(map[string]any)
	assert.EqualValues(t, 2, data["total_pages"])
}

func TestOrderHandler_GetAndUpdate(t *testing.T) {
	uc := new(MockOrderUseCase)
	uc.On("GetOrder", mock.Anything, "o-1").Return(Failure(StatusNotFound, "order not found: o-1"))
	uc.On("UpdateOrderStatus", mock.Anything, "o-1", OrderStatusShipped).Return(Success(StatusOK, nil))

	got := dispatch(t, uc, PatternGetOrderDetails, `{"id":"o-1"}`)
	updated := dispatch(t, uc, PatternUpdateOrderStatus, `{"id":"o-1","status":"SHIPPED"}`)

	assert.Equal(t, StatusNotFound, got.Status)
	assert.Equal(t, "order not found: o-1", got.Message)
	assert.Equal(t, StatusOK, updated.Status)
}
