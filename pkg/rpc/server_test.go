package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/tracing"
)

func newTestServer() *Server {
	srv := NewServer("inventory-service", zap.NewNop())
	srv.Handle("echo", func(ctx context.Context, data json.RawMessage) (any, error) {
		var in map[string]any
		if err := Bind(data, &in); err != nil {
			return nil, err
		}
		in["trace_id"] = tracing.TraceIDFromContext(ctx)
		return in, nil
	})
	srv.Handle("reject", func(ctx context.Context, data json.RawMessage) (any, error) {
		return nil, NewError(CodeNotFound, "Product ID 7 does not exist")
	})
	srv.Handle("fail", func(ctx context.Context, data json.RawMessage) (any, error) {
		return nil, errors.New("connection reset")
	})
	srv.Handle("panic", func(ctx context.Context, data json.RawMessage) (any, error) {
		panic("boom")
	})
	return srv
}

func TestServerDispatch(t *testing.T) {
	srv := newTestServer()

	rep := srv.Dispatch(context.Background(), Request{
		ID:      "1",
		Pattern: "echo",
		TraceID: "trace-1",
		Data:    json.RawMessage(`{"product_id":"A"}`),
	})

	require.Nil(t, rep.Error)
	assert.Equal(t, "1", rep.ID)
	assert.JSONEq(t, `{"product_id":"A","trace_id":"trace-1"}`, string(rep.Data))
}

func TestServerDispatch_Errors(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		pattern string
		data    string
		code    string
	}{
		{pattern: "missing", data: `{}`, code: CodeUnknownPattern},
		{pattern: "echo", data: `[1,2`, code: CodeBadRequest},
		{pattern: "reject", data: `{}`, code: CodeNotFound},
		{pattern: "fail", data: `{}`, code: CodeInternal},
		{pattern: "panic", data: `{}`, code: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			rep := srv.Dispatch(context.Background(), Request{ID: "x", Pattern: tt.pattern, Data: json.RawMessage(tt.data)})

			require.NotNil(t, rep.Error)
			assert.Equal(t, tt.code, rep.Error.Code)
			assert.Empty(t, rep.Data)
		})
	}
}

func TestServerPatterns(t *testing.T) {
	srv := newTestServer()

	assert.Equal(t, []string{"echo", "fail", "panic", "reject"}, srv.Patterns())
	assert.True(t, srv.Has("echo"))
	assert.False(t, srv.Has("createOrder"))
}

func TestLocalTransport(t *testing.T) {
	srv := newTestServer()
	client := NewClient("inventory-service", NewLocalTransport(srv), testConfig(), zap.NewNop())
	ctx := tracing.WithTraceID(context.Background(), "trace-local")

	var got map[string]string
	err := client.Call(ctx, "echo", map[string]string{"product_id": "B"}, &got)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"product_id": "B", "trace_id": "trace-local"}, got)

	err = client.Call(ctx, "reject", nil, nil)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	err = client.Call(ctx, "createOrder", nil, nil)
	assert.ErrorIs(t, err, ErrNoResponder)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLocalTransport_Timeout(t *testing.T) {
	srv := NewServer("slow", zap.NewNop())
	release := make(chan struct{})
	defer close(release)
	srv.Handle("slow", func(ctx context.Context, data json.RawMessage) (any, error) {
		<-release
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewLocalTransport(srv).Send(ctx, Request{ID: "1", Pattern: "slow"})

	assert.ErrorIs(t, err, ErrTimeout)
}
