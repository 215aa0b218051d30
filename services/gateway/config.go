package main

import (
	"time"

	"github.com/matheusmosca/order-saga/pkg/env"
	"github.com/matheusmosca/order-saga/pkg/rpc"
)

type Config struct {
	ServiceName         string
	Port                string
	LogLevel            string
	OTLPEndpoint        string
	Transport           string
	RedisAddr           string
	OrdersServiceURL    string
	InventoryServiceURL string
	RPC                 rpc.Config
	// OrdersTimeout bounds one createOrder attempt, which spans a whole saga.
	OrdersTimeout       time.Duration
}

func loadConfig() Config {
	return Config{
		ServiceName:         env.GetEnv("SERVICE_NAME", "gateway"),
		Port:                env.GetEnv("PORT", "8080"),
		LogLevel:            env.GetEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:        env.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		Transport:           env.GetEnv("RPC_TRANSPORT", rpc.TransportRedis),
		RedisAddr:           env.GetEnv("REDIS_ADDR", "localhost:6379"),
		OrdersServiceURL:    env.GetEnv("ORDERS_SERVICE_URL", "http://localhost:8081"),
		InventoryServiceURL: env.GetEnv("INVENTORY_SERVICE_URL", "http://localhost:8082"),
		RPC:                 rpc.ConfigFromEnv(),
		OrdersTimeout:       env.GetEnvDuration("ORDERS_RPC_TIMEOUT", 30*time.Second),
	}
}
