// Package bolt implements the record store on BoltDB, an embedded
// key/value store backed by a single file. It serves local development and
// tests, where no DynamoDB endpoint is available.
//
// Records live in one bucket keyed by idempotency key; a second bucket maps
// transaction ids back to idempotency keys for the id lookup path. Bolt
// serializes writes through a single update transaction, which gives
// PutIfAbsent its atomicity.
package bolt

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

const (
	recordBucket = "transactions"
	idBucket     = "transaction_ids"
)

// Store wraps a BoltDB database and exposes the idempotent record store
// operations.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) a BoltDB database at the given path and ensures
// the buckets exist.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(idBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Initialize implements store.Store. Buckets are created in New, so there
// is nothing left to prepare.
func (s *Store) Initialize(ctx context.Context) error {
	return nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutIfAbsent implements store.Store. If the idempotency key already holds
// a record, the stored value is returned unchanged and no write happens.
func (s *Store) PutIfAbsent(ctx context.Context, record *transactions.Record) (store.PutResult, error) {
	var result store.PutResult

	err := s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(recordBucket))
		ids := tx.Bucket([]byte(idBucket))

		if existing := records.Get([]byte(record.IdempotencyKey)); existing != nil {
			var winner transactions.Record
			if err := json.Unmarshal(existing, &winner); err != nil {
				return err
			}
			result = store.PutResult{Record: &winner, Created: false}
			return nil
		}

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := records.Put([]byte(record.IdempotencyKey), data); err != nil {
			return err
		}
		if err := ids.Put([]byte(record.ID), []byte(record.IdempotencyKey)); err != nil {
			return err
		}

		result = store.PutResult{Record: record, Created: true}
		return nil
	})
	if err != nil {
		return store.PutResult{}, &store.StorageError{Op: "PutIfAbsent", Err: err}
	}

	return result, nil
}

// GetByIdempotencyKey implements store.Store.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*transactions.Record, error) {
	var record transactions.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(recordBucket)).Get([]byte(key))
		if v == nil {
			return store.ErrNotFound
		}
		return json.Unmarshal(v, &record)
	})
	if err == store.ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, &store.StorageError{Op: "GetByIdempotencyKey", Err: err}
	}

	return &record, nil
}

// GetByID implements store.Store through the id index bucket.
func (s *Store) GetByID(ctx context.Context, id string) (*transactions.Record, error) {
	var record transactions.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket([]byte(idBucket)).Get([]byte(id))
		if key == nil {
			return store.ErrNotFound
		}
		v := tx.Bucket([]byte(recordBucket)).Get(key)
		if v == nil {
			return store.ErrNotFound
		}
		return json.Unmarshal(v, &record)
	})
	if err == store.ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, &store.StorageError{Op: "GetByID", Err: err}
	}

	return &record, nil
}

// QueryByAccount implements store.Store. Bolt has no secondary index, so
// this walks the record bucket; acceptable for a development backend.
func (s *Store) QueryByAccount(ctx context.Context, accountID string) ([]*transactions.Record, error) {
	var records []*transactions.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(recordBucket)).ForEach(func(k, v []byte) error {
			var record transactions.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			if record.AccountID == accountID {
				records = append(records, &record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, &store.StorageError{Op: "QueryByAccount", Err: err}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
