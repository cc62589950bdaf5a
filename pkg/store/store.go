// Package store defines the durable storage contract for transaction
// records and the error taxonomy shared by its backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

// ErrNotFound is returned by lookups when no record matches. Absence is not
// an infrastructure failure, so it is a sentinel rather than a StorageError.
var ErrNotFound = errors.New("transaction not found")

// PutResult is the outcome of a conditional insert.
//
// Created reports whether the candidate won the write. When false, Record
// is the pre-existing record that claimed the idempotency key first; the
// caller must treat that as success and answer with the original record's
// identifiers, not the candidate's.
type PutResult struct {
	Record  *transactions.Record
	Created bool
}

// Store is the durable, idempotent persistence layer for transaction
// records. Implementations must make PutIfAbsent atomic across concurrent
// writers: exactly one of N concurrent calls with the same idempotency key
// observes Created, and every other call observes the winner's record.
type Store interface {
	// Initialize prepares the backend (connections, table existence).
	Initialize(ctx context.Context) error

	// Close releases backend resources.
	Close() error

	// PutIfAbsent inserts the record if no record holds its idempotency
	// key yet, otherwise returns the existing record unchanged.
	PutIfAbsent(ctx context.Context, record *transactions.Record) (PutResult, error)

	// GetByID returns the record with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*transactions.Record, error)

	// GetByIdempotencyKey returns the record holding the given key, or
	// ErrNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*transactions.Record, error)

	// QueryByAccount returns every record for an account, newest first.
	QueryByAccount(ctx context.Context, accountID string) ([]*transactions.Record, error)
}

// StorageError wraps an infrastructure failure from a backend.
//
// Retryable marks transient classes (throttling, timeouts) that the caller
// may retry with the same idempotency key; convergence through PutIfAbsent
// makes that retry safe.
type StorageError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StorageError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("storage: %s failed (retryable): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a StorageError marked retryable.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Retryable
}
