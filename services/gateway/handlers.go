package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/rpc"
)

// Caller is the client side of a backend service.
type Caller interface {
	Call(ctx context.Context, pattern string, payload, reply any) error
}

type customerBody struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
}

type orderItemBody struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type createOrderBody struct {
	Customer customerBody    `json:"customer" binding:"required"`
	Items    []orderItemBody `json:"items" binding:"required,min=1,dive"`
}

// HeaderIdempotencyKey names the order to create. Resending a request with the same key
// returns the order created by the first one.
const HeaderIdempotencyKey = "Idempotency-Key"

type createOrderPayload struct {
	OrderID  string          `json:"order_id"`
	Customer customerBody    `json:"customer"`
	Items    []orderItemBody `json:"items"`
}

type listOrdersQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type updateStatusBody struct {
	Status string `json:"status" binding:"required,oneof=PENDING CONFIRMED SHIPPED DELIVERED"`
}

type checkAvailabilityBody struct {
	ProductIDs []string `json:"product_ids" binding:"required,min=1,dive,required"`
	Flatten    bool     `json:"flatten"`
}

type updateInventoryBody struct {
	StockQuantity *int             `json:"stock_quantity,omitempty" binding:"omitempty,min=0"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

type createInventoryBody struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	StockQuantity int              `json:"stock_quantity" binding:"min=0"`
	ImageURL      string           `json:"image_url"`
}

// sagaResult mirrors the tagged reply of the orders service.
type sagaResult struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

var resultStatus = map[string]int{
	"CREATED":     http.StatusCreated,
	"OK":          http.StatusOK,
	"CONFLICT":    http.StatusConflict,
	"NOT_FOUND":   http.StatusNotFound,
	"BAD_REQUEST": http.StatusBadRequest,
	"UNAVAILABLE": http.StatusServiceUnavailable,
}

// Handler serves the public HTTP API by forwarding to the backend services.
type Handler struct {
	orders    Caller
	inventory Caller
	logger    *zap.Logger
}

func NewHandler(orders, inventory Caller, logger *zap.Logger) *Handler {
	return &Handler{orders: orders, inventory: inventory, logger: logger}
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID := c.GetHeader(HeaderIdempotencyKey)
	if orderID == "" {
		orderID = uuid.New().String()
	} else if _, err := uuid.Parse(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": HeaderIdempotencyKey + " must be a UUID"})
		return
	}

	// Every retry of this call carries the same order ID.
	h.forwardOrders(c, "createOrder", createOrderPayload{
		OrderID:  orderID,
		Customer: body.Customer,
		Items:    body.Items,
	})
}

func (h *Handler) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.forwardOrders(c, "listOrders", gin.H{"page": query.Page, "limit": query.Limit})
}

func (h *Handler) GetOrder(c *gin.Context) {
	h.forwardOrders(c, "getOrderDetails", gin.H{"id": c.Param("id")})
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.forwardOrders(c, "updateOrderStatus", gin.H{"id": c.Param("id"), "status": body.Status})
}

func (h *Handler) GetAvailability(c *gin.Context) {
	h.forwardInventory(c, http.StatusOK, "getProductAvailability", gin.H{"product_id": c.Param("productId")})
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	var body checkAvailabilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.forwardInventory(c, http.StatusOK, "checkBulkAvailability", body)
}

func (h *Handler) UpdateInventory(c *gin.Context) {
	var body updateInventoryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Price != nil && body.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}
	h.forwardInventory(c, http.StatusOK, "updateInventory", gin.H{
		"product_id":     c.Param("productId"),
		"stock_quantity": body.StockQuantity,
		"price":          body.Price,
		"is_active":      body.IsActive,
	})
}

func (h *Handler) CreateInventory(c *gin.Context) {
	var body createInventoryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}
	h.forwardInventory(c, http.StatusCreated, "createInventory", body)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// forwardOrders relays a tagged orders result, choosing the HTTP status from its tag.
func (h *Handler) forwardOrders(c *gin.Context, pattern string, payload any) {
	var result sagaResult
	if err := h.orders.Call(c.Request.Context(), pattern, payload, &result); err != nil {
		h.fail(c, pattern, err)
		return
	}

	status, ok := resultStatus[result.Status]
	if !ok {
		status = http.StatusBadGateway
	}
	if status >= http.StatusBadRequest {
		c.JSON(status, gin.H{"status": result.Status, "message": result.Message})
		return
	}
	c.JSON(status, result.Data)
}

func (h *Handler) forwardInventory(c *gin.Context, status int, pattern string, payload any) {
	var data json.RawMessage
	if err := h.inventory.Call(c.Request.Context(), pattern, payload, &data); err != nil {
		h.fail(c, pattern, err)
		return
	}
	c.JSON(status, data)
}

func (h *Handler) fail(c *gin.Context, pattern string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), h.logger).Error("❌ backend call failed",
			zap.String("pattern", pattern), zap.Error(err))
	}
	c.JSON(status, gin.H{"message": rpc.MessageOf(err)})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, rpc.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, rpc.ErrEmptyReply):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch rpc.CodeOf(err) {
	case rpc.CodeNotFound:
		return http.StatusNotFound
	case rpc.CodeBadRequest:
		return http.StatusBadRequest
	case rpc.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}
