//go:build integration

package rpc

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/tracing"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisTransport(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	listener := NewRedisListener(rdb, newTestServer(), zap.NewNop())
	go func() { _ = listener.Serve(serveCtx) }()

	client := NewClient("inventory-service", NewRedisTransport(rdb), Config{MaxAttempts: 5, RetryDelay: 200 * time.Millisecond, Timeout: 2 * time.Second}, zap.NewNop())
	callCtx := tracing.WithTraceID(ctx, "trace-redis")

	var got map[string]string
	require.NoError(t, client.Call(callCtx, "echo", map[string]string{"product_id": "R"}, &got))
	assert.Equal(t, "trace-redis", got["trace_id"])

	err := client.Call(callCtx, "reject", nil, nil)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	_, err = NewRedisTransport(rdb).Send(callCtx, Request{ID: "x", Pattern: "unsubscribed"})
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestRedisListener_OneReplicaServesEachRequest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	rdb := startRedis(t)

	var served atomic.Int32
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	for i := 0; i < 2; i++ {
		srv := NewServer("orders-service", zap.NewNop())
		srv.Handle("createOrder", func(ctx context.Context, data json.RawMessage) (any, error) {
			served.Add(1)
			return map[string]string{"status": "CREATED"}, nil
		})
		listener := NewRedisListener(rdb, srv, zap.NewNop())
		go func() { _ = listener.Serve(serveCtx) }()
	}
	client := NewClient("orders-service", NewRedisTransport(rdb), Config{MaxAttempts: 5, RetryDelay: 200 * time.Millisecond, Timeout: 2 * time.Second}, zap.NewNop())

	// Both replicas must be subscribed before the request counted below is published.
	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, requestChannel("createOrder")).Result()
		return err == nil && n[requestChannel("createOrder")] == 2
	}, 5*time.Second, 50*time.Millisecond)

	// Act
	var got map[string]string
	err := client.Call(ctx, "createOrder", map[string]string{"order_id": "o-1"}, &got)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "CREATED", got["status"])
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), served.Load())
}
