package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/rpc"
	"github.com/matheusmosca/order-saga/pkg/shutdown"
	"github.com/matheusmosca/order-saga/pkg/tracing"
)

func main() {
	cfg := loadConfig()

	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("❌ Gateway stopped", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	tp, err := tracing.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	mp, err := tracing.InitMetrics(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logger.Warn("Error shutting down meter provider", zap.Error(err))
		}
	}()

	var rdb *redis.Client
	if cfg.Transport == rpc.TransportRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	ordersTransport, err := rpc.NewTransport(cfg.Transport, rdb, cfg.OrdersServiceURL)
	if err != nil {
		return err
	}
	inventoryTransport, err := rpc.NewTransport(cfg.Transport, rdb, cfg.InventoryServiceURL)
	if err != nil {
		return err
	}

	ordersRPC := cfg.RPC
	ordersRPC.Timeout = cfg.OrdersTimeout

	handler := NewHandler(
		rpc.NewClient("orders-service", ordersTransport, ordersRPC, logger),
		rpc.NewClient("inventory-service", inventoryTransport, cfg.RPC, logger),
		logger,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(cfg.ServiceName, handler, logger),
	}

	logger.Info("🚀 Gateway listening", zap.String("port", cfg.Port), zap.String("transport", cfg.Transport))
	return shutdown.ServeHTTP(ctx, srv, 10*time.Second)
}
