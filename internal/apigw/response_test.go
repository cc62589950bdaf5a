package apigw

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinstance/aws-banking-system/internal/auth"
	"github.com/edinstance/aws-banking-system/pkg/service"
	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

func TestResponseHeaders(t *testing.T) {
	resp := Response(http.StatusOK, map[string]string{"message": "ok"}, "OPTIONS,POST")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "nosniff", resp.Headers["X-Content-Type-Options"])
	assert.Equal(t, "OPTIONS,POST", resp.Headers["Access-Control-Allow-Methods"])
	assert.Contains(t, resp.Headers["Access-Control-Allow-Headers"], "Idempotency-Key")

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "ok", body["message"])
}

func TestResponseNilBody(t *testing.T) {
	resp := Response(http.StatusNoContent, nil, "OPTIONS,GET")
	assert.Equal(t, "{}", resp.Body)
}

func TestHeaderCaseInsensitive(t *testing.T) {
	headers := map[string]string{
		"idempotency-key": "abc",
		"Authorization":   "Bearer token",
	}

	assert.Equal(t, "abc", Header(headers, "Idempotency-Key"))
	assert.Equal(t, "abc", Header(headers, "IDEMPOTENCY-KEY"))
	assert.Equal(t, "Bearer token", Header(headers, "authorization"))
	assert.Empty(t, Header(headers, "Content-Type"))
	assert.Empty(t, Header(nil, "Idempotency-Key"))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &transactions.ValidationError{Field: "amount", Reason: "Missing required field: amount"}, http.StatusBadRequest},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"bad token", &auth.TokenError{Reason: "token has expired"}, http.StatusUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"retryable storage", &store.StorageError{Op: "PutIfAbsent", Retryable: true, Err: errors.New("throttled")}, http.StatusServiceUnavailable},
		{"non-retryable storage", &store.StorageError{Op: "PutIfAbsent", Err: errors.New("boom")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := FromError(tt.err, "OPTIONS,POST")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorBody
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestFromErrorRetryableSetsRetryAfter(t *testing.T) {
	err := &store.StorageError{Op: "PutIfAbsent", Retryable: true, Err: errors.New("throttled")}

	resp := FromError(err, "OPTIONS,POST")
	assert.Equal(t, "1", resp.Headers["Retry-After"])

	var body ErrorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Contains(t, body.Error, "Idempotency-Key")
}

func TestFromErrorValidationUsesReason(t *testing.T) {
	err := &transactions.ValidationError{Field: "type", Reason: "Invalid transaction type"}

	resp := FromError(err, "OPTIONS,POST")

	var body ErrorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "Invalid transaction type", body.Error)
}
