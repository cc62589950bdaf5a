// Package apigw holds the shared API Gateway plumbing for the Lambda
// handlers: response construction with the standard header set,
// case-insensitive header access, and the error-to-status mapping.
package apigw

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/pkg/service"
	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

// Response builds a JSON API Gateway response carrying the standard
// content-type, security and CORS headers. methods is the comma-separated
// CORS method list for the endpoint.
func Response(statusCode int, body interface{}, methods string) events.APIGatewayProxyResponse {
	payload := "{}"
	if body != nil {
		if data, err := json.Marshal(body); err == nil {
			payload = string(data)
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                 "application/json",
			"X-Content-Type-Options":       "nosniff",
			"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": methods,
			"Access-Control-Allow-Headers": "Content-Type, Authorization, Idempotency-Key",
		},
		Body: payload,
	}
}

// ErrorBody is the JSON envelope for error responses.
type ErrorBody struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	Example    string `json:"example,omitempty"`
}

// ErrorResponse builds an error response with the standard headers.
func ErrorResponse(statusCode int, message, methods string) events.APIGatewayProxyResponse {
	return Response(statusCode, ErrorBody{Error: message}, methods)
}

// Header performs a case-insensitive lookup in API Gateway request
// headers, which arrive with client-controlled casing.
func Header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// FromError maps a domain error to an API Gateway response.
//
// Validation failures are client errors. Retryable storage failures answer
// 503 with a Retry-After hint so clients resubmit with the same
// idempotency key; everything else is a 500.
func FromError(err error, methods string) events.APIGatewayProxyResponse {
	var validation *transactions.ValidationError
	if errors.As(err, &validation) {
		return ErrorResponse(http.StatusBadRequest, validation.Reason, methods)
	}

	var tokenErr *auth.TokenError
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.As(err, &tokenErr):
		return ErrorResponse(http.StatusUnauthorized, "Invalid or missing credentials.", methods)
	case errors.Is(err, service.ErrForbidden):
		return ErrorResponse(http.StatusForbidden, "Access denied.", methods)
	case errors.Is(err, service.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, "Transaction not found", methods)
	}

	if store.IsRetryable(err) {
		resp := ErrorResponse(http.StatusServiceUnavailable,
			"Service temporarily unavailable. Please retry with the same Idempotency-Key.", methods)
		resp.Headers["Retry-After"] = "1"
		return resp
	}

	return ErrorResponse(http.StatusInternalServerError,
		"Failed to process transaction. Please try again.", methods)
}
