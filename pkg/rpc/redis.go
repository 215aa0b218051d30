package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/idempotency"
)

const (
	requestChannelPrefix = "rpc.request."
	replyChannelPrefix   = "rpc.reply."

	claimTTL = 10 * time.Minute
)

func requestChannel(pattern string) string { return requestChannelPrefix + pattern }

func replyChannel(id string) string { return replyChannelPrefix + id }

// RedisTransport sends requests over Redis pub/sub. Each call subscribes to a private
// reply channel before publishing, so the reply cannot be missed.
type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) Send(ctx context.Context, req Request) (Reply, error) {
	req.ReplyTo = replyChannel(req.ID)

	sub := t.rdb.Subscribe(ctx, req.ReplyTo)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return Reply{}, transportError(ctx, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("rpc: encoding request: %w", err)
	}

	receivers, err := t.rdb.Publish(ctx, requestChannel(req.Pattern), body).Result()
	if err != nil {
		return Reply{}, transportError(ctx, err)
	}
	if receivers == 0 {
		return Reply{}, ErrNoResponder
	}

	select {
	case msg, ok := <-sub.Channel():
		if !ok {
			return Reply{}, fmt.Errorf("%w: reply channel closed", ErrTransport)
		}
		var rep Reply
		if err := json.Unmarshal([]byte(msg.Payload), &rep); err != nil {
			return Reply{}, fmt.Errorf("%w: decoding reply: %w", ErrTransport, err)
		}
		return rep, nil
	case <-ctx.Done():
		return Reply{}, contextError(ctx)
	}
}

// RedisListener feeds requests published for a server's patterns into Dispatch and
// publishes the replies. Pub/sub delivers every request to all replicas of a service;
// each request ID is claimed so only one of them serves it.
type RedisListener struct {
	rdb    *redis.Client
	srv    *Server
	claims *idempotency.Store
	logger *zap.Logger
}

func NewRedisListener(rdb *redis.Client, srv *Server, logger *zap.Logger) *RedisListener {
	return &RedisListener{
		rdb:    rdb,
		srv:    srv,
		claims: idempotency.NewStore(rdb, claimTTL),
		logger: logger,
	}
}

// Serve blocks until ctx is cancelled, then waits for in-flight requests.
func (l *RedisListener) Serve(ctx context.Context) error {
	patterns := l.srv.Patterns()
	channels := make([]string, 0, len(patterns))
	for _, p := range patterns {
		channels = append(channels, requestChannel(p))
	}

	sub := l.rdb.Subscribe(ctx, channels...)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %v: %w", channels, err)
	}
	l.logger.Info("🚀 Listening on redis", zap.Strings("patterns", patterns))

	var wg sync.WaitGroup
	defer wg.Wait()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.handle(ctx, msg.Payload)
			}()
		}
	}
}

func (l *RedisListener) handle(ctx context.Context, payload string) {
	var req Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		l.logger.Error("❌ dropping malformed request", zap.Error(err))
		return
	}
	if req.ReplyTo == "" {
		l.logger.Warn("⚠️ request without reply channel", zap.String("pattern", req.Pattern))
		return
	}

	seen, err := l.claims.Seen(ctx, l.claims.Key("rpc", req.Pattern, req.ID))
	if err != nil {
		l.logger.Error("❌ claiming request", zap.String("pattern", req.Pattern), zap.Error(err))
		return
	}
	if seen {
		l.logger.Debug("request served by another replica", zap.String("pattern", req.Pattern), zap.String("request_id", req.ID))
		return
	}

	rep := l.srv.Dispatch(context.WithoutCancel(ctx), req)
	body, err := json.Marshal(rep)
	if err != nil {
		l.logger.Error("❌ encoding reply", zap.Error(err))
		return
	}
	if err := l.rdb.Publish(context.WithoutCancel(ctx), req.ReplyTo, body).Err(); err != nil {
		l.logger.Error("❌ publishing reply", zap.String("reply_to", req.ReplyTo), zap.Error(err))
	}
}
