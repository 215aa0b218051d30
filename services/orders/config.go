package main

import (
	"github.com/matheusmosca/order-saga/pkg/database"
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
	InventoryServiceURL string
	RPC                 rpc.Config
	Database            database.Config
}

func loadConfig() Config {
	return Config{
		ServiceName:         env.GetEnv("SERVICE_NAME", "orders-service"),
		Port:                env.GetEnv("PORT", "8081"),
		LogLevel:            env.GetEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:        env.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		Transport:           env.GetEnv("RPC_TRANSPORT", rpc.TransportRedis),
		RedisAddr:           env.GetEnv("REDIS_ADDR", "localhost:6379"),
		InventoryServiceURL: env.GetEnv("INVENTORY_SERVICE_URL", "http://localhost:8082"),
		RPC:                 rpc.ConfigFromEnv(),
		Database: database.Config{
			Host:     env.GetEnv("DATABASE_HOST", "localhost"),
			Port:     env.GetEnv("DATABASE_PORT", "5432"),
			User:     env.GetEnv("DATABASE_USER", "root"),
			Password: env.GetEnv("DATABASE_PASSWORD", "saga_pass"),
			Name:     env.GetEnv("DATABASE_NAME", "orders_db"),
			MaxConns: int32(env.GetEnvInt("DATABASE_MAX_CONNS", 25)),
			MinConns: int32(env.GetEnvInt("DATABASE_MIN_CONNS", 5)),
		},
	}
}
