// Lambda entrypoint for GET /transactions and GET /transactions/{id}.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/edinstance/aws-banking-system/internal/apigw"
	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
	"github.com/edinstance/aws-banking-system/pkg/service"
	dynamostore "github.com/edinstance/aws-banking-system/pkg/store/dynamodb"
)

const allowedMethods = "OPTIONS,GET"

var (
	cfg    config.Config
	log    *slog.Logger
	svc    *service.Service
	verify auth.Verifier
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log = logging.New("GetTransactions", cfg.LogLevel)

	if cfg.TableName == "" {
		log.Error("FATAL: TRANSACTIONS_TABLE_NAME environment variable not set")
		os.Exit(1)
	}

	db, err := dynamostore.New(context.Background(), dynamostore.Config{
		Region:    cfg.Region,
		TableName: cfg.TableName,
		Endpoint:  cfg.DynamoDBEndpoint,
	})
	if err != nil {
		log.Error("error creating record store", "error", err)
		os.Exit(1)
	}
	if err := db.Initialize(context.Background()); err != nil {
		log.Error("error initializing record store", "error", err)
		os.Exit(1)
	}

	svc = service.New(db, service.Config{Environment: cfg.Environment}, log, nil)

	// Built on first use; LazyVerifier detaches the build context so the
	// JWKS refresh keeps running across invocations.
	verify = auth.NewLazyVerifier(func(ctx context.Context) (auth.Verifier, error) {
		return auth.NewCognitoVerifier(ctx, cfg.Region, cfg.CognitoUserPoolID, cfg.CognitoClientID)
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqLog := log.With("request_id", request.RequestContext.RequestID)

	token := auth.BearerToken(apigw.Header(request.Headers, "Authorization"))
	userID, err := verify.VerifySubject(ctx, token)
	if err != nil {
		var cfgErr *auth.ConfigurationError
		if errors.As(err, &cfgErr) {
			reqLog.Error("auth verifier unavailable", "error", err)
			return apigw.ErrorResponse(http.StatusInternalServerError, "Server configuration error", allowedMethods), nil
		}
		reqLog.Warn("authentication failed", "error", err)
		return apigw.FromError(err, allowedMethods), nil
	}

	if id := request.PathParameters["id"]; id != "" {
		record, err := svc.GetTransaction(ctx, userID, id)
		if err != nil {
			reqLog.Warn("transaction lookup failed", "transaction_id", id, "error", err)
			return apigw.FromError(err, allowedMethods), nil
		}
		return apigw.Response(http.StatusOK, record, allowedMethods), nil
	}

	accountID := request.QueryStringParameters["accountId"]
	if accountID == "" {
		return apigw.ErrorResponse(http.StatusBadRequest, "accountId query parameter is required", allowedMethods), nil
	}

	records, err := svc.ListTransactions(ctx, userID, accountID)
	if err != nil {
		reqLog.Error("failed to list transactions", "account_id", accountID, "error", err)
		return apigw.FromError(err, allowedMethods), nil
	}
	return apigw.Response(http.StatusOK, records, allowedMethods), nil
}

func main() {
	lambda.Start(handleRequest)
}
