package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinstance/aws-banking-system/pkg/store"
)

func TestClassifyRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"deadline exceeded", context.DeadlineExceeded},
		{"canceled", context.Canceled},
		{"wrapped deadline", fmt.Errorf("operation error DynamoDB: PutItem: %w", context.DeadlineExceeded)},
		{"throughput exceeded", &types.ProvisionedThroughputExceededException{}},
		{"request limit", &types.RequestLimitExceeded{}},
		{"internal server error", &types.InternalServerError{}},
		{"throttling code", &smithy.GenericAPIError{Code: "ThrottlingException"}},
		{"service unavailable code", &smithy.GenericAPIError{Code: "ServiceUnavailable"}},
		{"limit exceeded code", &smithy.GenericAPIError{Code: "LimitExceededException"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("PutIfAbsent", tt.err)

			var storageErr *store.StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.True(t, storageErr.Retryable)
			assert.Equal(t, "PutIfAbsent", storageErr.Op)
			assert.True(t, store.IsRetryable(err))
		})
	}
}

func TestClassifyNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("connection refused")},
		{"validation code", &smithy.GenericAPIError{Code: "ValidationException"}},
		{"access denied code", &smithy.GenericAPIError{Code: "AccessDeniedException"}},
		{"resource not found", &types.ResourceNotFoundException{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("GetByID", tt.err)

			var storageErr *store.StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.False(t, storageErr.Retryable)
			assert.False(t, store.IsRetryable(err))
		})
	}
}

func TestClassifyPreservesCause(t *testing.T) {
	cause := &types.ProvisionedThroughputExceededException{}
	err := classify("QueryByAccount", cause)

	var throughput *types.ProvisionedThroughputExceededException
	assert.ErrorAs(t, err, &throughput)
}
