// Package config loads the deployment configuration from the environment
// into a single struct passed at startup. The environment selector affects
// naming and credentials only; no core behavior branches on it.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries every recognized deployment option.
type Config struct {
	// Environment is the deployment environment name (dev, staging, prod).
	Environment string

	// TableName is the DynamoDB transactions table.
	TableName string

	// Region is the AWS region.
	Region string

	// DynamoDBEndpoint overrides the DynamoDB endpoint for local stacks.
	DynamoDBEndpoint string

	// CognitoUserPoolID and CognitoClientID parameterize the identity
	// boundary.
	CognitoUserPoolID string
	CognitoClientID   string

	// IdempotencyExpirationDays controls how long an idempotency key
	// blocks resubmission. Zero, the default, leaves the expiration
	// marker off the record entirely: transactions are durable financial
	// data and are never deleted by storage.
	IdempotencyExpirationDays int

	// LogLevel is the minimum slog level (DEBUG, INFO, WARN, ERROR).
	LogLevel string

	// StoreBackend selects the record store for the local server:
	// dynamodb, immudb or bolt.
	StoreBackend string

	// ListenAddr is the local server bind address.
	ListenAddr string
}

// Load reads the configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment:               getEnv("ENVIRONMENT_NAME", "dev"),
		TableName:                 os.Getenv("TRANSACTIONS_TABLE_NAME"),
		Region:                    getEnv("AWS_REGION", "eu-west-2"),
		DynamoDBEndpoint:          os.Getenv("DYNAMODB_ENDPOINT"),
		CognitoUserPoolID:         os.Getenv("COGNITO_USER_POOL_ID"),
		CognitoClientID:           os.Getenv("COGNITO_CLIENT_ID"),
		IdempotencyExpirationDays: 0,
		LogLevel:                  getEnv("LOG_LEVEL", "INFO"),
		StoreBackend:              getEnv("STORE_BACKEND", "dynamodb"),
		ListenAddr:                getEnv("LISTEN_ADDR", ":8080"),
	}

	if raw := os.Getenv("IDEMPOTENCY_EXPIRATION_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_EXPIRATION_DAYS %q", raw)
		}
		cfg.IdempotencyExpirationDays = days
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
