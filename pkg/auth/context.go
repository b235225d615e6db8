package auth

import "context"

// identityKey keeps the context key unexported so only this package can
// write the identity.
type identityKey struct{}

// SetIdentity returns a child context carrying the authenticated identity.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext reads the identity stored by the middleware.
// A nil result means the request was anonymous or bypassed auth.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}
