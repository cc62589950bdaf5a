package transactions

import (
	"github.com/google/uuid"
)

const (
	// Idempotency keys are expected to be UUID v4 class values; the length
	// bounds reject obviously malformed keys before the UUID parse.
	minIdempotencyKeyLength = 10
	maxIdempotencyKeyLength = 64

	// MaxDescriptionLength bounds the optional free-text description.
	MaxDescriptionLength = 256
)

// IsValidUUID reports whether val parses as a UUID.
func IsValidUUID(val string) bool {
	if val == "" {
		return false
	}
	_, err := uuid.Parse(val)
	return err == nil
}

// ValidateIdempotencyKey checks a client-supplied idempotency key. The
// endpoint requires explicit client-generated keys, so an absent or empty
// key is an error, as is anything that is not a UUID of sensible length.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return &ValidationError{
			Field:  "Idempotency-Key",
			Reason: "Idempotency-Key header is required for transaction creation",
		}
	}
	if len(key) < minIdempotencyKeyLength || len(key) > maxIdempotencyKeyLength {
		return &ValidationError{
			Field:  "Idempotency-Key",
			Reason: "Idempotency-Key must be between 10 and 64 characters",
		}
	}
	if !IsValidUUID(key) {
		return &ValidationError{
			Field:  "Idempotency-Key",
			Reason: "Idempotency-Key must be a valid UUID",
		}
	}
	return nil
}

// ValidationError describes a client-caused validation failure. It is
// terminal for the request and never triggers a store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
