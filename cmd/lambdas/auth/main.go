// Lambda entrypoint for POST /auth/login and POST /auth/refresh.
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
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"github.com/edinstance/aws-banking-system/internal/apigw"
	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
)

const allowedMethods = "OPTIONS,POST"

var (
	log *slog.Logger
	svc *auth.Service
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log = logging.New("Auth", cfg.LogLevel)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region))
	if err != nil {
		log.Error("unable to load SDK config", "error", err)
		os.Exit(1)
	}

	client := cognito.NewFromConfig(awsCfg)
	svc = auth.NewService(client, cfg.CognitoClientID, cfg.CognitoUserPoolID, log)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqLog := log.With("request_id", request.RequestContext.RequestID)

	switch request.Path {
	case "/auth/login":
		return handleLogin(ctx, reqLog, request.Body), nil
	case "/auth/refresh":
		return handleRefresh(ctx, reqLog, request.Body), nil
	default:
		return apigw.ErrorResponse(http.StatusNotFound, "Not found", allowedMethods), nil
	}
}

func handleLogin(ctx context.Context, reqLog *slog.Logger, body string) events.APIGatewayProxyResponse {
	var req loginRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		reqLog.Warn("invalid JSON in login request", "error", err)
		return apigw.ErrorResponse(http.StatusBadRequest, "Invalid JSON format in request body", allowedMethods)
	}
	if req.Username == "" || req.Password == "" {
		return apigw.ErrorResponse(http.StatusBadRequest, "Username and password are required.", allowedMethods)
	}

	tokens, err := svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return authErrorResponse(reqLog, err)
	}

	return apigw.Response(http.StatusOK, struct {
		Message string `json:"message"`
		*auth.Tokens
	}{"Login successful!", tokens}, allowedMethods)
}

func handleRefresh(ctx context.Context, reqLog *slog.Logger, body string) events.APIGatewayProxyResponse {
	var req refreshRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		reqLog.Warn("invalid JSON in refresh request", "error", err)
		return apigw.ErrorResponse(http.StatusBadRequest, "Invalid JSON format in request body", allowedMethods)
	}
	if req.RefreshToken == "" {
		return apigw.ErrorResponse(http.StatusBadRequest, "Refresh token is required.", allowedMethods)
	}

	tokens, err := svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return authErrorResponse(reqLog, err)
	}

	return apigw.Response(http.StatusOK, struct {
		Message string `json:"message"`
		*auth.Tokens
	}{"Tokens refreshed successfully!", tokens}, allowedMethods)
}

func authErrorResponse(reqLog *slog.Logger, err error) events.APIGatewayProxyResponse {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apigw.ErrorResponse(http.StatusUnauthorized, "Invalid username or password.", allowedMethods)
	case errors.Is(err, auth.ErrInvalidRefresh):
		return apigw.ErrorResponse(http.StatusUnauthorized, "Refresh token invalid or expired. Please re-authenticate.", allowedMethods)
	case errors.Is(err, auth.ErrUserNotConfirmed):
		return apigw.ErrorResponse(http.StatusForbidden, "User not confirmed. Please verify your account.", allowedMethods)
	case errors.Is(err, auth.ErrUserNotFound):
		return apigw.ErrorResponse(http.StatusNotFound, "User not found.", allowedMethods)
	case errors.Is(err, auth.ErrTooManyRequests):
		return apigw.ErrorResponse(http.StatusTooManyRequests, "Too many attempts, please try again later.", allowedMethods)
	default:
		reqLog.Error("authentication service error", "error", err)
		return apigw.ErrorResponse(http.StatusInternalServerError, "Authentication service error. Please try again later.", allowedMethods)
	}
}

func main() {
	lambda.Start(handleRequest)
}
