// Package auth holds the authentication boundary: bearer-token
// verification and the Cognito-backed login/refresh service. The
// transaction handlers only ever consume the verified subject claim; no
// token material crosses into the core.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned when no bearer credential accompanies an
// authenticated request.
var ErrMissingToken = errors.New("missing bearer token")

// ConfigurationError marks a failure in the verifier's own setup (bad pool
// id, unreachable JWKS) rather than a problem with the presented token.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TokenError marks an invalid, expired or otherwise unacceptable token.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token: %s", e.Reason)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Verifier validates a bearer credential and yields the verified subject.
// It is an injected collaborator of the handlers, never a global.
type Verifier interface {
	VerifySubject(ctx context.Context, token string) (string, error)
}

// CognitoVerifier verifies Cognito-issued RS256 ID tokens against the user
// pool's JWKS endpoint.
type CognitoVerifier struct {
	clientID string
	issuer   string
	jwks     keyfunc.Keyfunc
}

// NewCognitoVerifier builds a verifier for the given user pool. The JWKS
// is fetched once here and refreshed in the background by keyfunc.
func NewCognitoVerifier(ctx context.Context, region, userPoolID, clientID string) (*CognitoVerifier, error) {
	if userPoolID == "" {
		return nil, &ConfigurationError{Err: errors.New("missing Cognito user pool ID")}
	}
	if clientID == "" {
		return nil, &ConfigurationError{Err: errors.New("missing Cognito client ID")}
	}

	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	jwksURL := issuer + "/.well-known/jwks.json"

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to fetch JWKS: %w", err)}
	}

	return &CognitoVerifier{
		clientID: clientID,
		issuer:   issuer,
		jwks:     jwks,
	}, nil
}

// VerifySubject implements Verifier. The token must be a non-expired ID
// token issued by the configured pool for the configured client, and must
// carry a sub claim.
func (v *CognitoVerifier) VerifySubject(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", &TokenError{Reason: "token has expired", Err: err}
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return "", &TokenError{Reason: "wrong audience", Err: err}
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return "", &TokenError{Reason: "wrong issuer", Err: err}
		default:
			return "", &TokenError{Reason: "verification failed", Err: err}
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &TokenError{Reason: "unexpected claims type"}
	}

	if use, _ := claims["token_use"].(string); use != "id" {
		return "", &TokenError{Reason: "token is not an ID token"}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", &TokenError{Reason: "token is missing the sub claim"}
	}
	return sub, nil
}

// BearerToken extracts the credential from an Authorization header value,
// tolerating a missing Bearer prefix the way the API gateway does.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
