// Package dynamodb implements the record store on AWS DynamoDB.
//
// The table is keyed on the idempotency key itself, so the conditional
// PutItem on key absence is the single atomic serialization point for
// concurrent duplicate submissions. Two global secondary indexes serve the
// remaining lookup paths without scans: TransactionIdIndex on id, and
// AccountIdIndex on accountId+createdAt.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

const (
	transactionIDIndex = "TransactionIdIndex"
	accountIDIndex     = "AccountIdIndex"
)

// Config holds the configuration for the DynamoDB store.
type Config struct {
	Region      string
	TableName   string
	Endpoint    string
	CreateTable bool
}

// Store is a DynamoDB-backed implementation of store.Store.
type Store struct {
	client      *dynamodb.Client
	tableName   string
	initialized bool
}

// New creates a DynamoDB store from the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			// Custom endpoint, e.g. local DynamoDB in development.
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := &Store{
		client:    client,
		tableName: cfg.TableName,
	}

	if cfg.CreateTable {
		if err := s.createTransactionTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return s, nil
}

// NewFromClient wraps an existing DynamoDB client, used by tests and the
// setup tooling.
func NewFromClient(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Initialize implements store.Store.
func (s *Store) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return fmt.Errorf("table %s does not exist", s.tableName)
		}
		return fmt.Errorf("error checking table: %w", err)
	}

	s.initialized = true
	return nil
}

// Close implements store.Store. DynamoDB has no connection to release.
func (s *Store) Close() error {
	s.initialized = false
	return nil
}

// PutIfAbsent implements store.Store.
//
// The write is conditioned on the idempotency key (the table hash key)
// being absent. When the condition fails, DynamoDB returns the old item
// image, which is the record that won the race; that record is returned
// with Created=false and the rejection is not an error.
func (s *Store) PutIfAbsent(ctx context.Context, record *transactions.Record) (store.PutResult, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return store.PutResult{}, &store.StorageError{
			Op:  "PutIfAbsent",
			Err: fmt.Errorf("failed to marshal transaction: %w", err),
		}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(s.tableName),
		Item:                                item,
		ConditionExpression:                 aws.String("attribute_not_exists(idempotencyKey)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return store.PutResult{Record: record, Created: true}, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) > 0 {
			var existing transactions.Record
			if uerr := attributevalue.UnmarshalMap(ccf.Item, &existing); uerr != nil {
				return store.PutResult{}, &store.StorageError{
					Op:  "PutIfAbsent",
					Err: fmt.Errorf("failed to unmarshal existing transaction: %w", uerr),
				}
			}
			return store.PutResult{Record: &existing, Created: false}, nil
		}
		// Older DynamoDB Local builds do not return the old image.
		existing, gerr := s.GetByIdempotencyKey(ctx, record.IdempotencyKey)
		if gerr != nil {
			return store.PutResult{}, gerr
		}
		return store.PutResult{Record: existing, Created: false}, nil
	}

	return store.PutResult{}, classify("PutIfAbsent", err)
}

// GetByIdempotencyKey implements store.Store via a primary-key GetItem.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*transactions.Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"idempotencyKey": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("GetByIdempotencyKey", err)
	}
	if len(result.Item) == 0 {
		return nil, store.ErrNotFound
	}

	var record transactions.Record
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, &store.StorageError{
			Op:  "GetByIdempotencyKey",
			Err: fmt.Errorf("failed to unmarshal transaction: %w", err),
		}
	}
	return &record, nil
}

// GetByID implements store.Store via the TransactionIdIndex.
func (s *Store) GetByID(ctx context.Context, id string) (*transactions.Record, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(transactionIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, classify("GetByID", err)
	}
	if len(result.Items) == 0 {
		return nil, store.ErrNotFound
	}

	var record transactions.Record
	if err := attributevalue.UnmarshalMap(result.Items[0], &record); err != nil {
		return nil, &store.StorageError{
			Op:  "GetByID",
			Err: fmt.Errorf("failed to unmarshal transaction: %w", err),
		}
	}
	return &record, nil
}

// QueryByAccount implements store.Store via the AccountIdIndex, newest
// first.
func (s *Store) QueryByAccount(ctx context.Context, accountID string) ([]*transactions.Record, error) {
	var records []*transactions.Record
	var startKey map[string]types.AttributeValue

	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(accountIDIndex),
			KeyConditionExpression: aws.String("accountId = :accountId"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":accountId": &types.AttributeValueMemberS{Value: accountID},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, classify("QueryByAccount", err)
		}

		for _, item := range result.Items {
			var record transactions.Record
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, &store.StorageError{
					Op:  "QueryByAccount",
					Err: fmt.Errorf("failed to unmarshal transaction: %w", err),
				}
			}
			records = append(records, &record)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return records, nil
}

// classify converts an SDK error to a StorageError with its retryable flag.
func classify(op string, err error) *store.StorageError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &store.StorageError{Op: op, Retryable: true, Err: err}
	}

	var throughput *types.ProvisionedThroughputExceededException
	var requestLimit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	if errors.As(err, &throughput) || errors.As(err, &requestLimit) || errors.As(err, &internal) {
		return &store.StorageError{Op: op, Retryable: true, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "LimitExceededException":
			return &store.StorageError{Op: op, Retryable: true, Err: err}
		}
	}

	return &store.StorageError{Op: op, Err: err}
}

// createTransactionTable creates the transactions table with its secondary
// indexes, used against development endpoints. Table-level TTL is never
// enabled: records are durable financial data, and the idempotency
// expiration marker is interpreted in application code only.
func (s *Store) createTransactionTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("idempotencyKey"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("accountId"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("createdAt"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("idempotencyKey"),
				KeyType:       types.KeyTypeHash,
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(transactionIDIndex),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String("id"),
						KeyType:       types.KeyTypeHash,
					},
				},
				Projection: &types.Projection{
					ProjectionType: types.ProjectionTypeAll,
				},
			},
			{
				IndexName: aws.String(accountIDIndex),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String("accountId"),
						KeyType:       types.KeyTypeHash,
					},
					{
						AttributeName: aws.String("createdAt"),
						KeyType:       types.KeyTypeRange,
					},
				},
				Projection: &types.Projection{
					ProjectionType: types.ProjectionTypeAll,
				},
			},
		},
	})
	if err != nil {
		var alreadyExistsErr *types.ResourceInUseException
		if errors.As(err, &alreadyExistsErr) {
			return nil
		}
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to wait for table creation: %w", err)
	}

	return nil
}
