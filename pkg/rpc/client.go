package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/tracing"
)

// Transport delivers one Request and returns its Reply. Implementations report
// ErrTimeout, ErrNoResponder or ErrTransport for conditions a retry may fix.
type Transport interface {
	Send(ctx context.Context, req Request) (Reply, error)
}

// Config controls the retry policy of a Client.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// DefaultConfig returns 3 attempts, 2s apart, 5s each.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		Timeout:     5 * time.Second,
	}
}

// Client calls remote handlers with bounded retry.
type Client struct {
	target    string
	transport Transport
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
	attempts  metric.Int64Counter
}

// NewClient creates a Client for the service named target.
func NewClient(target string, transport Transport, cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	attempts, err := otel.Meter("order-saga/rpc").Int64Counter(
		"rpc.client.attempts",
		metric.WithDescription("Number of rpc attempts by pattern and outcome"),
	)
	if err != nil {
		attempts = noop.Int64Counter{}
	}

	return &Client{
		target:    target,
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("order-saga/rpc"),
		attempts:  attempts,
	}
}

// Call sends payload to pattern and decodes the reply data into reply (which may be nil).
// The trace identifier carried by ctx travels with every attempt.
func (c *Client) Call(ctx context.Context, pattern string, payload, reply any) error {
	ctx, span := c.tracer.Start(ctx, "rpc.call "+pattern, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	traceID := tracing.TraceIDFromContext(ctx)
	span.SetAttributes(
		attribute.String("rpc.service", c.target),
		attribute.String("rpc.method", pattern),
		attribute.String("trace_id", traceID),
	)
	log := logging.FromContext(ctx, c.logger).With(
		zap.String("target", c.target),
		zap.String("pattern", pattern),
	)

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("rpc: encoding %s payload: %w", pattern, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx); err != nil {
				span.RecordError(err)
				return fmt.Errorf("rpc: %s cancelled: %w", pattern, err)
			}
		}

		log.Debug("📨 rpc attempt", zap.Int("attempt", attempt))
		rep, err := c.send(ctx, Request{
			ID:      uuid.New().String(),
			Pattern: pattern,
			TraceID: traceID,
			Headers: tracing.Inject(ctx),
			Data:    data,
		})
		c.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rpc.method", pattern),
			attribute.String("rpc.outcome", outcome(rep, err)),
		))

		if err == nil {
			if rep.Error != nil {
				log.Info("ℹ️ rpc rejected", zap.String("code", rep.Error.Code), zap.String("message", rep.Error.Message))
				span.SetStatus(codes.Error, rep.Error.Code)
				return rep.Error
			}
			if err := decode(rep.Data, reply); err != nil {
				span.RecordError(err)
				return err
			}
			span.SetAttributes(attribute.Int("rpc.attempts", attempt))
			return nil
		}

		if ctx.Err() != nil {
			span.RecordError(err)
			return fmt.Errorf("rpc: %s cancelled: %w", pattern, ctx.Err())
		}

		lastErr = err
		if !IsRetryable(err) {
			log.Error("❌ rpc failed", zap.Int("attempt", attempt), zap.Error(err))
			span.RecordError(err)
			return err
		}
		log.Warn("⚠️ rpc attempt failed", zap.Int("attempt", attempt), zap.Int("max_attempts", c.cfg.MaxAttempts), zap.Error(err))
	}

	err = fmt.Errorf("%w: %s failed after %d attempts: %w", ErrUnavailable, pattern, c.cfg.MaxAttempts, lastErr)
	log.Error("❌ rpc retries exhausted", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, "retries exhausted")
	return err
}

func (c *Client) send(ctx context.Context, req Request) (Reply, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.transport.Send(attemptCtx, req)
}

func (c *Client) wait(ctx context.Context) error {
	if c.cfg.RetryDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decode(data json.RawMessage, reply any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyReply
	}
	if reply == nil {
		return nil
	}
	if err := json.Unmarshal(trimmed, reply); err != nil {
		return fmt.Errorf("rpc: decoding reply: %w", err)
	}
	return nil
}

func outcome(rep Reply, err error) string {
	switch {
	case err != nil && IsRetryable(err):
		return "retryable"
	case err != nil:
		return "failed"
	case rep.Error != nil:
		return "rejected"
	default:
		return "ok"
	}
}
