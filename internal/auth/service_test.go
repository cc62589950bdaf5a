package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	adminOut *cognito.AdminInitiateAuthOutput
	adminErr error
	initOut  *cognito.InitiateAuthOutput
	initErr  error

	lastAdminInput *cognito.AdminInitiateAuthInput
	lastInitInput  *cognito.InitiateAuthInput
}

func (f *fakeCognito) AdminInitiateAuth(ctx context.Context, params *cognito.AdminInitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.AdminInitiateAuthOutput, error) {
	f.lastAdminInput = params
	return f.adminOut, f.adminErr
}

func (f *fakeCognito) InitiateAuth(ctx context.Context, params *cognito.InitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.InitiateAuthOutput, error) {
	f.lastInitInput = params
	return f.initOut, f.initErr
}

func TestLoginReturnsTokens(t *testing.T) {
	fake := &fakeCognito{
		adminOut: &cognito.AdminInitiateAuthOutput{
			AuthenticationResult: &types.AuthenticationResultType{
				IdToken:      aws.String("id-token"),
				AccessToken:  aws.String("access-token"),
				RefreshToken: aws.String("refresh-token"),
				ExpiresIn:    3600,
			},
		},
	}
	svc := NewService(fake, "client-id", "pool-id", nil)

	tokens, err := svc.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "id-token", tokens.IDToken)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "refresh-token", tokens.RefreshToken)
	assert.Equal(t, int32(3600), tokens.ExpiresIn)

	require.NotNil(t, fake.lastAdminInput)
	assert.Equal(t, types.AuthFlowTypeAdminUserPasswordAuth, fake.lastAdminInput.AuthFlow)
	assert.Equal(t, "alice", fake.lastAdminInput.AuthParameters["USERNAME"])
}

func TestLoginRequiresCredentials(t *testing.T) {
	svc := NewService(&fakeCognito{}, "client-id", "pool-id", nil)

	_, err := svc.Login(context.Background(), "", "secret")
	assert.Error(t, err)

	_, err = svc.Login(context.Background(), "alice", "")
	assert.Error(t, err)
}

func TestLoginErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		cognito error
		want    error
	}{
		{"not authorized", &types.NotAuthorizedException{}, ErrInvalidCredentials},
		{"not confirmed", &types.UserNotConfirmedException{}, ErrUserNotConfirmed},
		{"not found", &types.UserNotFoundException{}, ErrUserNotFound},
		{"too many requests", &types.TooManyRequestsException{}, ErrTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeCognito{adminErr: tt.cognito}, "client-id", "pool-id", nil)

			_, err := svc.Login(context.Background(), "alice", "secret")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoginUnknownErrorWrapped(t *testing.T) {
	cause := errors.New("network down")
	svc := NewService(&fakeCognito{adminErr: cause}, "client-id", "pool-id", nil)

	_, err := svc.Login(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, cause)
}

func TestRefreshReturnsTokens(t *testing.T) {
	fake := &fakeCognito{
		initOut: &cognito.InitiateAuthOutput{
			AuthenticationResult: &types.AuthenticationResultType{
				IdToken:     aws.String("new-id-token"),
				AccessToken: aws.String("new-access-token"),
				ExpiresIn:   3600,
			},
		},
	}
	svc := NewService(fake, "client-id", "pool-id", nil)

	tokens, err := svc.Refresh(context.Background(), "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "new-id-token", tokens.IDToken)
	assert.Empty(t, tokens.RefreshToken)

	require.NotNil(t, fake.lastInitInput)
	assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, fake.lastInitInput.AuthFlow)
	assert.Equal(t, "refresh-token", fake.lastInitInput.AuthParameters["REFRESH_TOKEN"])
}

func TestRefreshInvalidToken(t *testing.T) {
	svc := NewService(&fakeCognito{initErr: &types.NotAuthorizedException{}}, "client-id", "pool-id", nil)

	_, err := svc.Refresh(context.Background(), "stale-token")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestRefreshRequiresToken(t *testing.T) {
	svc := NewService(&fakeCognito{}, "client-id", "pool-id", nil)

	_, err := svc.Refresh(context.Background(), "")
	assert.Error(t, err)
}
