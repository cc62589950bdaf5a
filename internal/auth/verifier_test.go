package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase prefix", "bearer abc.def.ghi", "abc.def.ghi"},
		{"no prefix", "abc.def.ghi", "abc.def.ghi"},
		{"surrounding whitespace", "  Bearer abc.def.ghi  ", "abc.def.ghi"},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BearerToken(tt.header))
		})
	}
}

func TestNewCognitoVerifierConfiguration(t *testing.T) {
	ctx := context.Background()

	_, err := NewCognitoVerifier(ctx, "eu-west-2", "", "client-id")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewCognitoVerifier(ctx, "eu-west-2", "eu-west-2_abc123", "")
	require.ErrorAs(t, err, &cfgErr)
}

func TestVerifySubjectEmptyToken(t *testing.T) {
	v := &CognitoVerifier{clientID: "client-id", issuer: "https://example.test"}

	_, err := v.VerifySubject(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenErrorMessage(t *testing.T) {
	err := &TokenError{Reason: "token has expired"}
	assert.Equal(t, "invalid token: token has expired", err.Error())
}
