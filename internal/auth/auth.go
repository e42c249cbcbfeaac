// Package auth verifies bearer tokens against the identity provider and
// carries the resulting identity through the request context.
package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated user attached to a request.
type Identity struct {
	ID          string
	Email       string
	FullName    string
	CareerStage string // student, fresher, experienced, career_changer
	TargetRole  string
}

// ErrInvalidToken indicates the provider rejected the token.
var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityCtxKey struct{}

var ctxKeyIdentity = identityCtxKey{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFrom retrieves the identity from the context. Returns nil and
// false for anonymous requests.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(*Identity)
	return id, ok && id != nil
}
