package tracing

import (
	"context"

	"github.com/google/uuid"
)

// HeaderTraceID is the inbound/outbound HTTP header carrying the trace identifier.
const HeaderTraceID = "X-Trace-Id"

type traceIDKey struct{}

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace identifier stored in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}

// EnsureTraceID returns ctx unchanged if it already carries a trace identifier,
// otherwise a new one is generated and attached.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := NewTraceID()
	return WithTraceID(ctx, traceID), traceID
}
