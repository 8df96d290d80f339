// Package auth supplies bearer credentials to the catalog client. The
// engine never re-authenticates; an ErrUnauthenticated from a provider
// is surfaced upward untouched.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthenticated indicates no valid credential is available.
// Callers must abort the current operation and not retry.
var ErrUnauthenticated = errors.New("no valid credential available")

// TokenProvider supplies a bearer credential string on demand.
type TokenProvider interface {
	// Token returns the current bearer token, or ErrUnauthenticated.
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider wraps a fixed token. Useful for tests and for
// callers that manage credential refresh themselves.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider that always returns token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// Token implements TokenProvider.
func (p *StaticTokenProvider) Token(_ context.Context) (string, error) {
	if p.token == "" {
		return "", ErrUnauthenticated
	}
	return p.token, nil
}
