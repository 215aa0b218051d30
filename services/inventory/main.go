package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheusmosca/order-saga/pkg/database"
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
		logger.Fatal("❌ Inventory Service stopped", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	if cfg.Transport != rpc.TransportRedis && cfg.Transport != rpc.TransportHTTP {
		return fmt.Errorf("unknown rpc transport %q", cfg.Transport)
	}

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

	pool, err := database.Connect(ctx, cfg.Database, 30, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	repository := NewInventoryRepository(pool)
	if err := repository.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	useCase := NewInventoryUseCase(repository, tp.Tracer(cfg.ServiceName), logger)
	server := rpc.NewServer(cfg.ServiceName, logger)
	NewInventoryHandler(useCase, logger).Register(server)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(cfg, server),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Inventory Service listening", zap.String("port", cfg.Port), zap.String("transport", cfg.Transport))
		return shutdown.ServeHTTP(gctx, httpServer, 10*time.Second)
	})

	if cfg.Transport == rpc.TransportRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		listener := rpc.NewRedisListener(rdb, server, logger)
		g.Go(func() error { return listener.Serve(gctx) })
	}

	return g.Wait()
}

func newRouter(cfg Config, server *rpc.Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	if cfg.Transport == rpc.TransportHTTP {
		rpc.RegisterHTTP(r, server)
	}
	return r
}
