package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edinstance/aws-banking-system/pkg/store"
	boltstore "github.com/edinstance/aws-banking-system/pkg/store/bolt"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

const testKey = "11111111-1111-1111-1111-111111111111"

// fakeStore counts calls and serves canned results.
type fakeStore struct {
	mu        sync.Mutex
	putCalls  int
	putResult store.PutResult
	putErr    error
	records   map[string]*transactions.Record
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                         { return nil }

func (f *fakeStore) PutIfAbsent(ctx context.Context, record *transactions.Record) (store.PutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return store.PutResult{}, f.putErr
	}
	if f.putResult.Record != nil {
		return f.putResult, nil
	}
	return store.PutResult{Record: record, Created: true}, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*transactions.Record, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetByIdempotencyKey(ctx context.Context, key string) (*transactions.Record, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) QueryByAccount(ctx context.Context, accountID string) ([]*transactions.Record, error) {
	var out []*transactions.Record
	for _, r := range f.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func validInput() RecordInput {
	return RecordInput{
		AccountID:      "123e4567-e89b-12d3-a456-426614174000",
		Amount:         "150.75",
		Type:           "DEPOSIT",
		Description:    "Initial deposit",
		IdempotencyKey: testKey,
		UserID:         "user-1",
		RequestID:      "req-1",
	}
}

func TestRecordTransactionCreates(t *testing.T) {
	fs := &fakeStore{}
	svc := New(fs, Config{Environment: "test", IdempotencyExpirationDays: 7}, nil, nil)

	result, err := svc.RecordTransaction(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, result.Created)

	record := result.Record
	assert.NotEmpty(t, record.ID)
	assert.True(t, transactions.IsValidUUID(record.ID))
	assert.Equal(t, testKey, record.IdempotencyKey)
	assert.Equal(t, transactions.Deposit, record.Type)
	assert.Equal(t, "150.75", record.Amount.String())
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "test", record.Environment)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Greater(t, record.IdempotencyExpiration, time.Now().Unix())
}

// With the default zero expiration the record carries no expiration
// marker at all; transactions are durable and must never be scheduled
// for deletion.
func TestRecordTransactionDefaultIsDurable(t *testing.T) {
	fs := &fakeStore{}
	svc := New(fs, Config{Environment: "test"}, nil, nil)

	result, err := svc.RecordTransaction(context.Background(), validInput())
	require.NoError(t, err)
	assert.Zero(t, result.Record.IdempotencyExpiration)

	data, err := json.Marshal(result.Record)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "idempotencyExpiration")
}

func TestRecordTransactionMissingKeyNeverTouchesStore(t *testing.T) {
	fs := &fakeStore{}
	svc := New(fs, Config{}, nil, nil)

	in := validInput()
	in.IdempotencyKey = ""

	_, err := svc.RecordTransaction(context.Background(), in)
	require.Error(t, err)

	var validation *transactions.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Idempotency-Key", validation.Field)
	assert.Equal(t, 0, fs.putCalls, "validation failures must not reach the store")
}

func TestRecordTransactionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecordInput)
		field  string
	}{
		{"unknown type", func(in *RecordInput) { in.Type = "WIRE_UNKNOWN" }, "type"},
		{"missing type", func(in *RecordInput) { in.Type = "" }, "type"},
		{"missing amount", func(in *RecordInput) { in.Amount = "" }, "amount"},
		{"malformed amount", func(in *RecordInput) { in.Amount = "abc" }, "amount"},
		{"zero amount", func(in *RecordInput) { in.Amount = "0" }, "amount"},
		{"negative amount", func(in *RecordInput) { in.Amount = "-10.00" }, "amount"},
		{"excess precision", func(in *RecordInput) { in.Amount = "10.001" }, "amount"},
		{"missing account", func(in *RecordInput) { in.AccountID = "" }, "accountId"},
		{"non-uuid account", func(in *RecordInput) { in.AccountID = "acc-1" }, "accountId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			svc := New(fs, Config{}, nil, nil)

			in := validInput()
			tt.mutate(&in)

			_, err := svc.RecordTransaction(context.Background(), in)
			require.Error(t, err)

			var validation *transactions.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
			assert.Equal(t, 0, fs.putCalls)
		})
	}
}

func TestRecordTransactionDuplicateReturnsOriginal(t *testing.T) {
	amount, err := transactions.ParseAmount("150.75")
	require.NoError(t, err)

	original := &transactions.Record{
		ID:             "original-id",
		IdempotencyKey: testKey,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Amount:         amount,
		Type:           transactions.Deposit,
	}
	fs := &fakeStore{putResult: store.PutResult{Record: original, Created: false}}
	svc := New(fs, Config{}, nil, nil)

	result, err := svc.RecordTransaction(context.Background(), validInput())
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "original-id", result.Record.ID, "the retry must answer with the original id")
	assert.Equal(t, original.CreatedAt, result.Record.CreatedAt)
}

func TestRecordTransactionStoreErrorPropagates(t *testing.T) {
	storeErr := &store.StorageError{Op: "PutIfAbsent", Retryable: true, Err: errors.New("throttled")}
	fs := &fakeStore{putErr: storeErr}
	svc := New(fs, Config{}, nil, nil)

	_, err := svc.RecordTransaction(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))
}

func TestGetTransactionOwnership(t *testing.T) {
	amount, err := transactions.ParseAmount("10.00")
	require.NoError(t, err)

	fs := &fakeStore{records: map[string]*transactions.Record{
		"tx-1": {ID: "tx-1", UserID: "user-1", Amount: amount},
	}}
	svc := New(fs, Config{}, nil, nil)

	record, err := svc.GetTransaction(context.Background(), "user-1", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", record.ID)

	_, err = svc.GetTransaction(context.Background(), "user-2", "tx-1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetTransaction(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactionsFiltersOwnership(t *testing.T) {
	amount, err := transactions.ParseAmount("10.00")
	require.NoError(t, err)

	accountID := "123e4567-e89b-12d3-a456-426614174000"
	fs := &fakeStore{records: map[string]*transactions.Record{
		"tx-1": {ID: "tx-1", UserID: "user-1", AccountID: accountID, Amount: amount},
		"tx-2": {ID: "tx-2", UserID: "user-2", AccountID: accountID, Amount: amount},
	}}
	svc := New(fs, Config{}, nil, nil)

	records, err := svc.ListTransactions(context.Background(), "user-1", accountID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tx-1", records[0].ID)
}

// End-to-end convergence through a real backend: two concurrent
// submissions with the same key yield one record and identical responses.
func TestRecordTransactionConcurrentConvergence(t *testing.T) {
	db, err := boltstore.New(filepath.Join(t.TempDir(), "transactions.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := New(db, Config{Environment: "test"}, nil, nil)

	in := validInput()
	in.AccountID = uuid.NewString()

	const n = 2
	results := make([]RecordResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RecordTransaction(context.Background(), in)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, results[0].Record.ID, results[1].Record.ID)
	assert.Equal(t, results[0].Record.CreatedAt, results[1].Record.CreatedAt)
	assert.NotEqual(t, results[0].Created, results[1].Created, "exactly one call may create")

	stored, err := db.QueryByAccount(context.Background(), in.AccountID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "150.75", stored[0].Amount.String())
}
