package authsvc

import (
	"context"
	"errors"
)

// Identity is what a verified bearer token resolves to.
type Identity struct {
	UserID   uint64
	Username string
	TokenID  string
}

type contextKey string

const IdentityContextKey contextKey = "Identity"

// IdentityFromContext returns the identity stored by the access guard.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}

// ContextWithIdentity is used by the access guard once a token checks out.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// Scope is carried in every access token. It is informational only.
const Scope = "items"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidToken      = errors.New("invalid token")
	ErrBadCredentials    = errors.New("incorrect username or password")
	ErrIdentityMissing   = errors.New("identity was not passed through the context")
	ErrUnsupportedMethod = errors.New("unsupported signing method")
)
