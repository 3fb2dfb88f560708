package middleware

import (
	"context"

	"github.com/MrEthical07/carauth"
)

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *carauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (*carauth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*carauth.Identity)
	return identity, ok && identity != nil
}
