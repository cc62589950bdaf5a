package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT_NAME", "TRANSACTIONS_TABLE_NAME", "AWS_REGION",
		"DYNAMODB_ENDPOINT", "COGNITO_USER_POOL_ID", "COGNITO_CLIENT_ID",
		"IDEMPOTENCY_EXPIRATION_DAYS", "LOG_LEVEL", "STORE_BACKEND", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "eu-west-2", cfg.Region)
	assert.Equal(t, 0, cfg.IdempotencyExpirationDays, "records are durable by default, no expiration marker")
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "dynamodb", cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Empty(t, cfg.TableName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT_NAME", "prod")
	t.Setenv("TRANSACTIONS_TABLE_NAME", "prod-transactions")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("DYNAMODB_ENDPOINT", "http://localhost:8000")
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_abc123")
	t.Setenv("COGNITO_CLIENT_ID", "client-id")
	t.Setenv("IDEMPOTENCY_EXPIRATION_DAYS", "30")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "prod-transactions", cfg.TableName)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "http://localhost:8000", cfg.DynamoDBEndpoint)
	assert.Equal(t, "us-east-1_abc123", cfg.CognitoUserPoolID)
	assert.Equal(t, 30, cfg.IdempotencyExpirationDays)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "bolt", cfg.StoreBackend)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoadInvalidExpiration(t *testing.T) {
	tests := []string{"abc", "-1", "1.5"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("IDEMPOTENCY_EXPIRATION_DAYS", raw)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadZeroExpirationDisables(t *testing.T) {
	t.Setenv("IDEMPOTENCY_EXPIRATION_DAYS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.IdempotencyExpirationDays)
}
