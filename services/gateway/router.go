package main

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func newRouter(serviceName string, h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(serviceName), TraceMiddleware(logger))

	api := r.Group("/api")
	api.GET("/health", h.Health)

	orders := api.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.PATCH("/:id/status", h.UpdateOrderStatus)

	inventory := api.Group("/inventory")
	inventory.POST("", h.CreateInventory)
	inventory.POST("/check", h.CheckAvailability)
	inventory.GET("/:productId", h.GetAvailability)
	inventory.PATCH("/:productId", h.UpdateInventory)

	return r
}
