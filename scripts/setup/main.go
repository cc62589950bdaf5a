// Setup tool for development environments: creates the transactions table
// (with its indexes and TTL) on the configured DynamoDB endpoint.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
	dynamostore "github.com/edinstance/aws-banking-system/pkg/store/dynamodb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("Setup", cfg.LogLevel)

	if cfg.TableName == "" {
		log.Error("TRANSACTIONS_TABLE_NAME environment variable not set")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := dynamostore.New(ctx, dynamostore.Config{
		Region:      cfg.Region,
		TableName:   cfg.TableName,
		Endpoint:    cfg.DynamoDBEndpoint,
		CreateTable: true,
	})
	if err != nil {
		log.Error("failed to create table", "table", cfg.TableName, "error", err)
		os.Exit(1)
	}

	if err := db.Initialize(ctx); err != nil {
		log.Error("table did not become ready", "table", cfg.TableName, "error", err)
		os.Exit(1)
	}

	log.Info("transactions table ready", "table", cfg.TableName, "region", cfg.Region)
}
