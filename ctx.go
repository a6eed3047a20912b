package users

import "context"

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithUserContext sets the User in the given context.
func WithUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the user from the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets verified token claims in the given context.
func WithClaimsContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts verified token claims from the context.
// Handlers read identity from here; they never re-parse the token.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok
}
