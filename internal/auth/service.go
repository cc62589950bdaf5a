package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// Credential errors surfaced by login and refresh. Handlers map these to
// HTTP statuses; the service itself never interprets them further.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotConfirmed   = errors.New("user not confirmed")
	ErrUserNotFound       = errors.New("user not found")
	ErrTooManyRequests    = errors.New("too many attempts, please try again later")
	ErrInvalidRefresh     = errors.New("refresh token invalid or expired")
)

// CognitoClient is the subset of the Cognito identity provider API the
// service uses.
type CognitoClient interface {
	AdminInitiateAuth(ctx context.Context, params *cognito.AdminInitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.AdminInitiateAuthOutput, error)
	InitiateAuth(ctx context.Context, params *cognito.InitiateAuthInput, optFns ...func(*cognito.Options)) (*cognito.InitiateAuthOutput, error)
}

// Tokens is the credential set returned to a successfully authenticated
// caller. RefreshToken is empty on refresh responses.
type Tokens struct {
	IDToken      string `json:"idToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int32  `json:"expiresIn,omitempty"`
}

// Service exchanges credentials for tokens through Cognito.
type Service struct {
	client     CognitoClient
	clientID   string
	userPoolID string
	log        *slog.Logger
}

// NewService creates an auth service over the given Cognito client.
func NewService(client CognitoClient, clientID, userPoolID string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client:     client,
		clientID:   clientID,
		userPoolID: userPoolID,
		log:        log,
	}
}

// Login exchanges a username and password for a token set.
func (s *Service) Login(ctx context.Context, username, password string) (*Tokens, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	out, err := s.client.AdminInitiateAuth(ctx, &cognito.AdminInitiateAuthInput{
		AuthFlow:   types.AuthFlowTypeAdminUserPasswordAuth,
		ClientId:   aws.String(s.clientID),
		UserPoolId: aws.String(s.userPoolID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, s.mapCognitoError("login", username, err)
	}

	s.log.Info("successfully initiated auth", "username", username)
	return tokensFromResult(out.AuthenticationResult), nil
}

// Refresh exchanges a refresh token for a new token set.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	out, err := s.client.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(s.clientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		if errors.As(err, &notAuthorized) {
			s.log.Warn("refresh token is invalid or expired")
			return nil, ErrInvalidRefresh
		}
		return nil, s.mapCognitoError("refresh", "", err)
	}

	s.log.Info("successfully refreshed tokens")
	return tokensFromResult(out.AuthenticationResult), nil
}

func (s *Service) mapCognitoError(op, username string, err error) error {
	var notAuthorized *types.NotAuthorizedException
	var notConfirmed *types.UserNotConfirmedException
	var notFound *types.UserNotFoundException
	var tooMany *types.TooManyRequestsException

	switch {
	case errors.As(err, &notAuthorized):
		s.log.Warn("authentication failed, invalid credentials", "op", op, "username", username)
		return ErrInvalidCredentials
	case errors.As(err, &notConfirmed):
		s.log.Warn("user not confirmed", "username", username)
		return ErrUserNotConfirmed
	case errors.As(err, &notFound):
		s.log.Warn("user not found", "username", username)
		return ErrUserNotFound
	case errors.As(err, &tooMany):
		s.log.Warn("too many requests to Cognito", "op", op)
		return ErrTooManyRequests
	default:
		s.log.Error("Cognito error", "op", op, "error", err)
		return fmt.Errorf("authentication service error: %w", err)
	}
}

func tokensFromResult(result *types.AuthenticationResultType) *Tokens {
	if result == nil {
		return &Tokens{}
	}
	return &Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
	}
}
