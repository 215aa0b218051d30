package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/rpc"
)

func newTestServer(repo InventoryRepository) *rpc.Server {
	srv := rpc.NewServer("inventory-service", zap.NewNop())
	NewInventoryHandler(newTestUseCase(repo), zap.NewNop()).Register(srv)
	return srv
}

func dispatch(t *testing.T, srv *rpc.Server, pattern string, payload any) rpc.Reply {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return srv.Dispatch(context.Background(), rpc.Request{ID: "1", Pattern: pattern, Data: data})
}

func TestRegister_Patterns(t *testing.T) {
	srv := newTestServer(new(MockRepository))

	assert.ElementsMatch(t, []string{
		PatternGetProductAvailability,
		PatternCheckBulkAvailability,
		PatternUpdateInventory,
		PatternBulkUpdateInventory,
		PatternRestockInventory,
		PatternCreateInventory,
	}, srv.Patterns())
}

func TestCheckBulkAvailabilityHandler_Flatten(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("GetAvailabilities", mock.Anything, []string{"A", "B"}).Return([]Availability{
		{ID: "A", StockQuantity: 10, Price: decimal.NewFromInt(5)},
		{ID: "B", StockQuantity: 4, Price: decimal.NewFromInt(2)},
	}, nil)
	srv := newTestServer(repo)

	// Act
	flat := dispatch(t, srv, PatternCheckBulkAvailability, BulkAvailabilityRequest{ProductIDs: []string{"A", "B"}, Flatten: true})
	list := dispatch(t, srv, PatternCheckBulkAvailability, BulkAvailabilityRequest{ProductIDs: []string{"A", "B"}})

	// Assert
	require.Nil(t, flat.Error)
	var byID map[string]Availability
	require.NoError(t, json.Unmarshal(flat.Data, &byID))
	assert.Equal(t, 10, byID["A"].StockQuantity)
	assert.True(t, byID["B"].Price.Equal(decimal.NewFromInt(2)))

	require.Nil(t, list.Error)
	var ordered []Availability
	require.NoError(t, json.Unmarshal(list.Data, &ordered))
	require.Len(t, ordered, 2)
	assert.Equal(t, "A", ordered[0].ID)
}

func TestGetProductAvailabilityHandler_NotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetProduct", mock.Anything, "Z").Return(nil, ErrProductNotFound)

	rep := dispatch(t, newTestServer(repo), PatternGetProductAvailability, GetAvailabilityRequest{ProductID: "Z"})

	require.NotNil(t, rep.Error)
	assert.Equal(t, rpc.CodeNotFound, rep.Error.Code)
}

func TestBulkUpdateInventoryHandler(t *testing.T) {
	updates := []StockUpdate{{ProductID: "A", StockQuantity: 8, Quantity: 2}}

	t.Run("success", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("BulkUpdateStock", mock.Anything, "order-1", updates).Return(nil)

		rep := dispatch(t, newTestServer(repo), PatternBulkUpdateInventory, BulkUpdateRequest{OrderID: "order-1", Updates: updates})

		require.Nil(t, rep.Error)
		assert.JSONEq(t, `{"success":true}`, string(rep.Data))
	})

	t.Run("guard failure is a conflict", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("BulkUpdateStock", mock.Anything, "", updates).Return(ErrInsufficientStock)

		rep := dispatch(t, newTestServer(repo), PatternBulkUpdateInventory, BulkUpdateRequest{Updates: updates})

		require.NotNil(t, rep.Error)
		assert.Equal(t, rpc.CodeConflict, rep.Error.Code)
	})

	t.Run("invalid input is a bad request", func(t *testing.T) {
		rep := dispatch(t, newTestServer(new(MockRepository)), PatternBulkUpdateInventory, BulkUpdateRequest{})

		require.NotNil(t, rep.Error)
		assert.Equal(t, rpc.CodeBadRequest, rep.Error.Code)
	})
}

func TestBulkUpdateInventoryHandler_CancelledReservation(t *testing.T) {
	updates := []StockUpdate{{ProductID: "A", StockQuantity: 8, Quantity: 2}}
	repo := new(MockRepository)
	repo.On("BulkUpdateStock", mock.Anything, "order-1", updates).Return(ErrReservationCancelled)

	rep := dispatch(t, newTestServer(repo), PatternBulkUpdateInventory, BulkUpdateRequest{OrderID: "order-1", Updates: updates})

	require.NotNil(t, rep.Error)
	assert.Equal(t, rpc.CodeConflict, rep.Error.Code)
}

func TestRestockInventoryHandler(t *testing.T) {
	items := []StockItem{{ProductID: "A", Quantity: 2}}
	repo := new(MockRepository)
	repo.On("IncreaseStock", mock.Anything, "order-1", items).Return(nil)

	rep := dispatch(t, newTestServer(repo), PatternRestockInventory, RestockRequest{OrderID: "order-1", Items: items})

	require.Nil(t, rep.Error)
	assert.JSONEq(t, `{"success":true}`, string(rep.Data))
}

func TestUpdateInventoryHandler(t *testing.T) {
	stock := 7
	repo := new(MockRepository)
	repo.On("UpdateProduct", mock.Anything, "A", ProductChanges{StockQuantity: &stock}).
		Return(&Product{ID: "A", StockQuantity: 7, Price: decimal.NewFromInt(5)}, nil)

	rep := dispatch(t, newTestServer(repo), PatternUpdateInventory, json.RawMessage(`{"product_id":"A","stock_quantity":7}`))

	require.Nil(t, rep.Error)
	var p Product
	require.NoError(t, json.Unmarshal(rep.Data, &p))
	assert.Equal(t, 7, p.StockQuantity)
}

func TestCreateInventoryHandler_Duplicate(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateProduct", mock.Anything, mock.Anything).Return(ErrProductExists)

	rep := dispatch(t, newTestServer(repo), PatternCreateInventory, json.RawMessage(`{"name":"Keyboard","price":"10.00","stock_quantity":1}`))

	require.NotNil(t, rep.Error)
	assert.Equal(t, rpc.CodeConflict, rep.Error.Code)
}

func TestHandler_MalformedPayload(t *testing.T) {
	srv := newTestServer(new(MockRepository))

	rep := srv.Dispatch(context.Background(), rpc.Request{ID: "1", Pattern: PatternBulkUpdateInventory, Data: json.RawMessage(`{"updates":"nope"}`)})

	require.NotNil(t, rep.Error)
	assert.Equal(t, rpc.CodeBadRequest, rep.Error.Code)
}
