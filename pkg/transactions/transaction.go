package transactions

import (
	"strings"
	"time"
)

// Type categorizes a banking transaction
type Type string

const (
	// Deposit represents a deposit transaction
	Deposit Type = "DEPOSIT"
	// Withdrawal represents a withdrawal transaction
	Withdrawal Type = "WITHDRAWAL"
	// Transfer represents a transfer transaction
	Transfer Type = "TRANSFER"
	// Adjustment represents an administrative balance adjustment
	Adjustment Type = "ADJUSTMENT"
)

// Types lists every recognized transaction type.
var Types = []Type{Deposit, Withdrawal, Transfer, Adjustment}

// ParseType resolves a client-supplied type string against the recognized set.
// Matching is case-insensitive; unknown values are rejected, never coerced.
func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Record represents a persisted banking transaction.
//
// A record is created exactly once per unique idempotency key and is
// immutable after that: retries carrying the same key must observe the
// original record, never a second one.
type Record struct {
	// ID is the unique identifier assigned on first successful write
	ID string `json:"id" dynamodbav:"id"`

	// AccountID is the identifier for the account the transaction applies to
	AccountID string `json:"accountId" dynamodbav:"accountId"`

	// UserID is the verified subject claim of the caller that recorded it
	UserID string `json:"userId" dynamodbav:"userId"`

	// CreatedAt is the persistence timestamp, immutable once set
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`

	// IdempotencyKey is the client-supplied key that deduplicates retries
	IdempotencyKey string `json:"idempotencyKey" dynamodbav:"idempotencyKey"`

	// Amount is the monetary value, kept in exact decimal form
	Amount Amount `json:"amount" dynamodbav:"amount"`

	// Type categorizes the transaction (DEPOSIT, WITHDRAWAL, ...)
	Type Type `json:"type" dynamodbav:"type"`

	// Description is optional free text, bounded length
	Description string `json:"description,omitempty" dynamodbav:"description,omitempty"`

	// Environment names the deployment environment the record was written in
	Environment string `json:"environment,omitempty" dynamodbav:"environment,omitempty"`

	// RequestID is the gateway request that first created the record
	RequestID string `json:"requestId,omitempty" dynamodbav:"requestId,omitempty"`

	// IdempotencyExpiration is an advisory unix-seconds marker after which
	// the idempotency key may be reused. It is absent by default and never
	// enforced by storage; the record itself is durable either way
	IdempotencyExpiration int64 `json:"idempotencyExpiration,omitempty" dynamodbav:"idempotencyExpiration,omitempty"`
}
