package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/tracing"
)

// HandlerFunc answers a request. Returning an *Error rejects the call with its code;
// any other error is reported to the caller as INTERNAL.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Server routes requests to handlers by pattern. It is transport agnostic:
// listeners decode envelopes and hand them to Dispatch.
type Server struct {
	name     string
	logger   *zap.Logger
	tracer   trace.Tracer
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewServer creates an empty Server for the service called name.
func NewServer(name string, logger *zap.Logger) *Server {
	return &Server{
		name:     name,
		logger:   logger,
		tracer:   otel.Tracer(name),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for pattern, replacing any previous handler.
func (s *Server) Handle(pattern string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = h
}

// Has reports whether a handler is registered for pattern.
func (s *Server) Has(pattern string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handlers[pattern]
	return ok
}

// Patterns lists the registered patterns in lexical order.
func (s *Server) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patterns := make([]string, 0, len(s.handlers))
	for p := range s.handlers {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}

// Dispatch runs the handler for req and always produces a Reply.
func (s *Server) Dispatch(ctx context.Context, req Request) (reply Reply) {
	ctx = tracing.Extract(ctx, req.Headers)
	if req.TraceID != "" {
		ctx = tracing.WithTraceID(ctx, req.TraceID)
	}
	ctx, span := s.tracer.Start(ctx, req.Pattern, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(
		attribute.String("rpc.method", req.Pattern),
		attribute.String("trace_id", req.TraceID),
	)

	log := logging.FromContext(ctx, s.logger).With(zap.String("pattern", req.Pattern))
	reply.ID = req.ID

	s.mu.RLock()
	h, ok := s.handlers[req.Pattern]
	s.mu.RUnlock()
	if !ok {
		log.Warn("⚠️ no handler registered")
		reply.Error = Errorf(CodeUnknownPattern, "%s has no handler for %q", s.name, req.Pattern)
		return reply
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s handler: %v", req.Pattern, r)
			log.Error("❌ handler panicked", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			reply.Data = nil
			reply.Error = NewError(CodeInternal, err.Error())
		}
	}()

	log.Info("➡️ Received request")
	result, err := h(ctx, req.Data)
	if err != nil {
		var rerr *Error
		if !errors.As(err, &rerr) {
			log.Error("❌ handler failed", zap.Error(err))
			rerr = NewError(CodeInternal, err.Error())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, rerr.Code)
		reply.Error = rerr
		return reply
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Error("❌ encoding reply", zap.Error(err))
		reply.Error = NewError(CodeInternal, err.Error())
		return reply
	}
	reply.Data = data
	return reply
}

// Bind decodes a request payload, rejecting malformed input as BAD_REQUEST.
func Bind(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return Errorf(CodeBadRequest, "invalid payload: %v", err)
	}
	return nil
}
