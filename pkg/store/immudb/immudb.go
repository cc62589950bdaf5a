// Package immudb implements the record store on immudb, giving an
// append-only, cryptographically verifiable ledger of transaction records
// for deployments that need audit-grade storage.
package immudb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codenotary/immudb/pkg/api/schema"
	"github.com/codenotary/immudb/pkg/client"

	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

// Config holds the connection settings for an immudb store.
type Config struct {
	Address   string
	Port      int
	Username  string
	Password  string
	Database  string
	TableName string
}

// DefaultConfig returns the settings for a local immudb instance.
func DefaultConfig() Config {
	return Config{
		Address:   "127.0.0.1",
		Port:      3322,
		Username:  "immudb",
		Password:  "immudb",
		Database:  "defaultdb",
		TableName: "transactions",
	}
}

// Store is an immudb-backed implementation of store.Store.
type Store struct {
	client    client.ImmuClient
	options   *client.Options
	tableName string
	connected bool
}

// New creates an immudb store. The connection is established lazily by
// Initialize.
func New(cfg Config) *Store {
	options := client.DefaultOptions().
		WithAddress(cfg.Address).
		WithPort(cfg.Port).
		WithUsername(cfg.Username).
		WithPassword(cfg.Password).
		WithDatabase(cfg.Database)

	return &Store{
		options:   options,
		tableName: cfg.TableName,
	}
}

// Initialize opens a session and ensures the transactions table exists.
func (s *Store) Initialize(ctx context.Context) error {
	if s.connected {
		return nil
	}

	c := client.NewClient().WithOptions(s.options)
	err := c.OpenSession(ctx, []byte(s.options.Username), []byte(s.options.Password), s.options.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to immudb: %w", err)
	}

	s.client = c
	s.connected = true

	sqlStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"idempotency_key VARCHAR[64] NOT NULL, "+
		"id VARCHAR[36] NOT NULL, "+
		"account_id VARCHAR[36] NOT NULL, "+
		"user_id VARCHAR[64], "+
		"created_at INTEGER NOT NULL, "+
		"amount VARCHAR[40] NOT NULL, "+
		"transaction_type VARCHAR[50] NOT NULL, "+
		"description VARCHAR[256], "+
		"idempotency_expiration INTEGER, "+
		"PRIMARY KEY idempotency_key"+
		")", s.tableName)

	if _, err := c.SQLExec(ctx, sqlStmt, nil); err != nil {
		c.CloseSession(ctx)
		s.connected = false
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexStmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS ON %s(id)", s.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS ON %s(account_id)", s.tableName),
	}
	for _, stmt := range indexStmts {
		if _, err := c.SQLExec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the immudb session.
func (s *Store) Close() error {
	if s.connected && s.client != nil {
		err := s.client.CloseSession(context.Background())
		if err == nil {
			s.connected = false
		}
		return err
	}
	return nil
}

// PutIfAbsent implements store.Store. The primary key on idempotency_key
// makes a duplicate insert fail; that failure is converted to a lookup of
// the winning record rather than surfaced as an error.
func (s *Store) PutIfAbsent(ctx context.Context, record *transactions.Record) (store.PutResult, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return store.PutResult{}, err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (idempotency_key, id, account_id, user_id, created_at, amount, transaction_type, description, idempotency_expiration) "+
			"VALUES (@idempotency_key, @id, @account_id, @user_id, @created_at, @amount, @transaction_type, @description, @idempotency_expiration)",
		s.tableName,
	)

	params := map[string]interface{}{
		"idempotency_key":        record.IdempotencyKey,
		"id":                     record.ID,
		"account_id":             record.AccountID,
		"user_id":                record.UserID,
		"created_at":             record.CreatedAt.UnixNano(),
		"amount":                 record.Amount.String(),
		"transaction_type":       string(record.Type),
		"description":            record.Description,
		"idempotency_expiration": record.IdempotencyExpiration,
	}

	_, err := s.client.SQLExec(ctx, query, params)
	if err == nil {
		return store.PutResult{Record: record, Created: true}, nil
	}

	if isDuplicateKey(err) {
		existing, gerr := s.GetByIdempotencyKey(ctx, record.IdempotencyKey)
		if gerr != nil {
			return store.PutResult{}, gerr
		}
		return store.PutResult{Record: existing, Created: false}, nil
	}

	return store.PutResult{}, &store.StorageError{
		Op:        "PutIfAbsent",
		Retryable: isTransient(err),
		Err:       err,
	}
}

// GetByIdempotencyKey implements store.Store.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*transactions.Record, error) {
	return s.queryOne(ctx, "idempotency_key", key)
}

// GetByID implements store.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*transactions.Record, error) {
	return s.queryOne(ctx, "id", id)
}

// QueryByAccount implements store.Store, newest first.
func (s *Store) QueryByAccount(ctx context.Context, accountID string) ([]*transactions.Record, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT idempotency_key, id, account_id, user_id, created_at, amount, transaction_type, description, idempotency_expiration "+
			"FROM %s WHERE account_id = @account_id ORDER BY created_at DESC", s.tableName)

	result, err := s.client.SQLQuery(ctx, query, map[string]interface{}{"account_id": accountID}, true)
	if err != nil {
		return nil, &store.StorageError{Op: "QueryByAccount", Retryable: isTransient(err), Err: err}
	}

	records := make([]*transactions.Record, 0, len(result.Rows))
	for _, row := range result.Rows {
		record, err := rowToRecord(row)
		if err != nil {
			return nil, &store.StorageError{Op: "QueryByAccount", Err: err}
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) queryOne(ctx context.Context, column, value string) (*transactions.Record, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT idempotency_key, id, account_id, user_id, created_at, amount, transaction_type, description, idempotency_expiration "+
			"FROM %s WHERE %s = @value", s.tableName, column)

	result, err := s.client.SQLQuery(ctx, query, map[string]interface{}{"value": value}, true)
	if err != nil {
		return nil, &store.StorageError{Op: "Get", Retryable: isTransient(err), Err: err}
	}
	if len(result.Rows) == 0 {
		return nil, store.ErrNotFound
	}

	record, err := rowToRecord(result.Rows[0])
	if err != nil {
		return nil, &store.StorageError{Op: "Get", Err: err}
	}
	return record, nil
}

func (s *Store) ensureConnected(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := s.Initialize(ctx); err != nil {
		return &store.StorageError{Op: "Initialize", Retryable: true, Err: err}
	}
	return nil
}

func rowToRecord(row *schema.Row) (*transactions.Record, error) {
	amount, err := transactions.ParseAmount(row.Values[5].GetS())
	if err != nil {
		return nil, err
	}

	return &transactions.Record{
		IdempotencyKey:        row.Values[0].GetS(),
		ID:                    row.Values[1].GetS(),
		AccountID:             row.Values[2].GetS(),
		UserID:                row.Values[3].GetS(),
		CreatedAt:             time.Unix(0, row.Values[4].GetN()).UTC(),
		Amount:                amount,
		Type:                  transactions.Type(row.Values[6].GetS()),
		Description:           row.Values[7].GetS(),
		IdempotencyExpiration: row.Values[8].GetN(),
	}, nil
}

func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection")
}
