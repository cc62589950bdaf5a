package auth

import (
	"context"
	"sync"
)

// LazyVerifier defers construction of the underlying Verifier until the
// first verification, so a cold start pays the JWKS fetch only when a
// request actually needs it.
//
// The build context is detached from the triggering invocation: keyfunc
// refreshes the JWKS in the background for the lifetime of the verifier,
// long after the first invocation's context has been cancelled. A failed
// build is retried on the next call rather than cached.
type LazyVerifier struct {
	build func(ctx context.Context) (Verifier, error)

	mu sync.Mutex
	v  Verifier
}

// NewLazyVerifier wraps a Verifier constructor for deferred construction.
func NewLazyVerifier(build func(ctx context.Context) (Verifier, error)) *LazyVerifier {
	return &LazyVerifier{build: build}
}

// VerifySubject implements Verifier.
func (l *LazyVerifier) VerifySubject(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	l.mu.Lock()
	if l.v == nil {
		v, err := l.build(context.WithoutCancel(ctx))
		if err != nil {
			l.mu.Unlock()
			return "", err
		}
		l.v = v
	}
	v := l.v
	l.mu.Unlock()

	return v.VerifySubject(ctx, token)
}
