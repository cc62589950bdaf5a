// Lambda entrypoint for POST /save/transaction.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"github.com/edinstance/aws-banking-system/internal/apigw"
	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
	"github.com/edinstance/aws-banking-system/pkg/service"
	dynamostore "github.com/edinstance/aws-banking-system/pkg/store/dynamodb"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

const allowedMethods = "OPTIONS,POST"

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

	log = logging.New("RecordTransaction", cfg.LogLevel)

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

	svc = service.New(db, service.Config{
		Environment:               cfg.Environment,
		IdempotencyExpirationDays: cfg.IdempotencyExpirationDays,
	}, log, nil)

	// Built on first use so a cold start does not pay the JWKS fetch
	// before the first authenticated request. LazyVerifier detaches the
	// build context, keeping the JWKS refresh alive across invocations.
	verify = auth.NewLazyVerifier(func(ctx context.Context) (auth.Verifier, error) {
		return auth.NewCognitoVerifier(ctx, cfg.Region, cfg.CognitoUserPoolID, cfg.CognitoClientID)
	})
}

// requestBody is the transaction submission wire format. Amount is kept as
// a json.Number so the decimal literal reaches validation intact.
type requestBody struct {
	AccountID   string      `json:"accountId"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.RequestContext.RequestID
	reqLog := log.With("request_id", requestID)
	reqLog.Info("processing transaction request", "environment", cfg.Environment)

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

	idempotencyKey := apigw.Header(request.Headers, "Idempotency-Key")

	var body requestBody
	if request.Body != "" {
		if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
			reqLog.Warn("invalid JSON in request body", "error", err)
			return apigw.ErrorResponse(http.StatusBadRequest, "Invalid JSON format in request body", allowedMethods), nil
		}
	}

	result, err := svc.RecordTransaction(ctx, service.RecordInput{
		AccountID:      body.AccountID,
		Amount:         body.Amount.String(),
		Type:           body.Type,
		Description:    body.Description,
		IdempotencyKey: idempotencyKey,
		UserID:         userID,
		RequestID:      requestID,
	})
	if err != nil {
		var validation *transactions.ValidationError
		if errors.As(err, &validation) && validation.Field == "Idempotency-Key" {
			reqLog.Warn("idempotency key rejected", "reason", validation.Reason)
			return apigw.Response(http.StatusBadRequest, apigw.ErrorBody{
				Error:      validation.Reason,
				Suggestion: "Please include an Idempotency-Key header with a UUID v4 value",
				Example:    uuid.NewString(),
			}, allowedMethods), nil
		}
		reqLog.Warn("transaction rejected", "error", err)
		return apigw.FromError(err, allowedMethods), nil
	}

	// Retried submissions answer with the original record and a plain 200
	// so clients observe the same transaction id end to end.
	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	return apigw.Response(status, result.Record, allowedMethods), nil
}

func main() {
	lambda.Start(handleRequest)
}
