// Package service implements the transaction recording and lookup
// operations on top of a record store. It owns request validation and the
// idempotency policy; durability and uniqueness live in the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edinstance/aws-banking-system/pkg/store"
	"github.com/edinstance/aws-banking-system/pkg/transactions"
)

// ErrNotFound is returned when a requested transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// ErrForbidden is returned when a transaction exists but belongs to a
// different user.
var ErrForbidden = errors.New("access denied")

// Recorder receives operational counters from the service. The prometheus
// implementation lives in internal/metrics; tests use the nop recorder.
type Recorder interface {
	TransactionRecorded(transactionType string)
	DuplicateResolved()
	ValidationFailed()
	StoreError(retryable bool)
	StoreDuration(op string, d time.Duration)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) TransactionRecorded(string)          {}
func (NopRecorder) DuplicateResolved()                  {}
func (NopRecorder) ValidationFailed()                   {}
func (NopRecorder) StoreError(bool)                     {}
func (NopRecorder) StoreDuration(string, time.Duration) {}

// Config carries the recording policy.
type Config struct {
	// Environment names the deployment environment stamped on records.
	Environment string

	// IdempotencyExpirationDays sets the idempotency expiration marker
	// stamped on new records. The marker is advisory: storage never
	// deletes records, expiry of the key claim is an application concern.
	// Zero, the default, omits the marker.
	IdempotencyExpirationDays int

	// StoreTimeout bounds each store call. Timeouts are retryable by the
	// caller with the same idempotency key.
	StoreTimeout time.Duration
}

// Service coordinates validation, idempotency and the record store.
type Service struct {
	store    store.Store
	cfg      Config
	log      *slog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// New creates a Service. A nil logger falls back to slog.Default and a nil
// recorder to NopRecorder.
func New(s store.Store, cfg Config, log *slog.Logger, recorder Recorder) *Service {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	return &Service{
		store:    s,
		cfg:      cfg,
		log:      log,
		recorder: recorder,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RecordInput is a transaction submission after transport decoding but
// before validation. Amount arrives as the raw decimal literal so that no
// precision is lost on the way in.
type RecordInput struct {
	AccountID      string
	Amount         string
	Type           string
	Description    string
	IdempotencyKey string
	UserID         string
	RequestID      string
}

// RecordResult is the outcome of RecordTransaction. Created is false when
// the idempotency key had already been claimed; Record is then the
// original record, returned unchanged.
type RecordResult struct {
	Record  *transactions.Record
	Created bool
}

// RecordTransaction validates the submission and persists it at most once.
//
// Validation failures short-circuit before any store interaction. A
// duplicate idempotency key is not an error: the pre-existing record is
// returned so retried requests observe the original transaction's id and
// timestamp.
func (s *Service) RecordTransaction(ctx context.Context, in RecordInput) (RecordResult, error) {
	candidate, err := s.buildCandidate(in)
	if err != nil {
		s.recorder.ValidationFailed()
		return RecordResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := s.now()
	result, err := s.store.PutIfAbsent(ctx, candidate)
	s.recorder.StoreDuration("PutIfAbsent", s.now().Sub(start))
	if err != nil {
		retryable := store.IsRetryable(err)
		s.recorder.StoreError(retryable)
		s.log.Error("failed to save transaction",
			"transaction_id", candidate.ID,
			"retryable", retryable,
			"error", err)
		return RecordResult{}, err
	}

	if !result.Created {
		s.recorder.DuplicateResolved()
		s.log.Info("duplicate submission resolved to existing transaction",
			"transaction_id", result.Record.ID,
			"idempotency_key", in.IdempotencyKey)
		return RecordResult{Record: result.Record, Created: false}, nil
	}

	s.recorder.TransactionRecorded(string(candidate.Type))
	s.log.Info("transaction recorded",
		"transaction_id", candidate.ID,
		"account_id", candidate.AccountID,
		"user_id", candidate.UserID)
	return RecordResult{Record: result.Record, Created: true}, nil
}

// buildCandidate validates the input and assembles the candidate record.
func (s *Service) buildCandidate(in RecordInput) (*transactions.Record, error) {
	if err := transactions.ValidateIdempotencyKey(in.IdempotencyKey); err != nil {
		return nil, err
	}

	if in.AccountID == "" || !transactions.IsValidUUID(in.AccountID) {
		return nil, &transactions.ValidationError{
			Field:  "accountId",
			Reason: "Invalid accountId, accountId must be a valid UUID",
		}
	}

	txType, ok := transactions.ParseType(in.Type)
	if !ok {
		return nil, &transactions.ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("Invalid transaction type. Must be one of: %v", transactions.Types),
		}
	}

	if in.Amount == "" {
		return nil, &transactions.ValidationError{
			Field:  "amount",
			Reason: "Missing required field: amount",
		}
	}
	amount, err := transactions.ParseAmount(in.Amount)
	if err != nil {
		return nil, &transactions.ValidationError{
			Field:  "amount",
			Reason: "Invalid amount format. Amount must be a number.",
		}
	}
	if err := amount.Validate(); err != nil {
		return nil, &transactions.ValidationError{Field: "amount", Reason: err.Error()}
	}

	if len(in.Description) > transactions.MaxDescriptionLength {
		return nil, &transactions.ValidationError{
			Field:  "description",
			Reason: fmt.Sprintf("Description must be at most %d characters", transactions.MaxDescriptionLength),
		}
	}

	now := s.now().UTC()
	record := &transactions.Record{
		ID:             s.newID(),
		AccountID:      in.AccountID,
		UserID:         in.UserID,
		CreatedAt:      now,
		IdempotencyKey: in.IdempotencyKey,
		Amount:         amount,
		Type:           txType,
		Description:    in.Description,
		Environment:    s.cfg.Environment,
		RequestID:      in.RequestID,
	}
	if s.cfg.IdempotencyExpirationDays > 0 {
		record.IdempotencyExpiration = now.AddDate(0, 0, s.cfg.IdempotencyExpirationDays).Unix()
	}
	return record, nil
}

// GetTransaction returns a single transaction owned by the given user.
func (s *Service) GetTransaction(ctx context.Context, userID, id string) (*transactions.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := s.now()
	record, err := s.store.GetByID(ctx, id)
	s.recorder.StoreDuration("GetByID", s.now().Sub(start))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.recorder.StoreError(store.IsRetryable(err))
		return nil, err
	}
	if record.UserID != userID {
		return nil, ErrForbidden
	}
	return record, nil
}

// ListTransactions returns every transaction for an account, newest first,
// restricted to records owned by the given user.
func (s *Service) ListTransactions(ctx context.Context, userID, accountID string) ([]*transactions.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	start := s.now()
	records, err := s.store.QueryByAccount(ctx, accountID)
	s.recorder.StoreDuration("QueryByAccount", s.now().Sub(start))
	if err != nil {
		s.recorder.StoreError(store.IsRetryable(err))
		return nil, err
	}

	owned := make([]*transactions.Record, 0, len(records))
	for _, r := range records {
		if r.UserID == userID {
			owned = append(owned, r)
		}
	}
	return owned, nil
}
