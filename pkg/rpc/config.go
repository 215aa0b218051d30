package rpc

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matheusmosca/order-saga/pkg/env"
)

// Transport kinds selectable through RPC_TRANSPORT.
const (
	TransportRedis = "redis"
	TransportHTTP  = "http"
)

// ConfigFromEnv reads RPC_MAX_ATTEMPTS, RPC_RETRY_DELAY and RPC_TIMEOUT over DefaultConfig.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		MaxAttempts: env.GetEnvInt("RPC_MAX_ATTEMPTS", def.MaxAttempts),
		RetryDelay:  env.GetEnvDuration("RPC_RETRY_DELAY", def.RetryDelay),
		Timeout:     env.GetEnvDuration("RPC_TIMEOUT", def.Timeout),
	}
}

// NewTransport builds the client side of kind. baseURL is only used by the HTTP transport.
func NewTransport(kind string, rdb *redis.Client, baseURL string) (Transport, error) {
	switch kind {
	case TransportRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis transport needs a redis client")
		}
		return NewRedisTransport(rdb), nil
	case TransportHTTP:
		if baseURL == "" {
			return nil, fmt.Errorf("http transport needs a base url")
		}
		return NewHTTPTransport(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown rpc transport %q", kind)
	}
}
