package transactions

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// maxAmountScale bounds amounts to currency minor units; submissions with
// more decimal places are rejected rather than silently rounded.
const maxAmountScale = 2

// Amount is an exact decimal monetary value.
//
// Monetary values are never represented as binary floating point: JSON
// round-trips through the decimal string form, and DynamoDB round-trips
// through the native number type, which carries arbitrary-precision
// decimals. An amount of 150.75 is stored and returned as exactly 150.75.
type Amount struct {
	decimal.Decimal
}

// NewAmount creates an Amount from a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Decimal: d}, nil
}

// Validate checks that the amount is positive and within the supported
// precision.
func (a Amount) Validate() error {
	if a.Sign() <= 0 {
		return fmt.Errorf("amount must be a positive number")
	}
	if !a.Decimal.Equal(a.Decimal.Round(maxAmountScale)) {
		return fmt.Errorf("amount supports at most %d decimal places", maxAmountScale)
	}
	return nil
}

// Equal reports whether two amounts represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

// MarshalJSON emits the amount as a bare JSON number, using the exact
// decimal literal rather than a float conversion.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// MarshalDynamoDBAttributeValue stores the amount as a DynamoDB number from
// its decimal string form, preserving exact precision.
func (a Amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.String()}, nil
}

// UnmarshalDynamoDBAttributeValue restores the amount from a DynamoDB number.
func (a *Amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return fmt.Errorf("amount attribute must be a number, got %T", av)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("invalid stored amount %q: %w", n.Value, err)
	}
	a.Decimal = d
	return nil
}
