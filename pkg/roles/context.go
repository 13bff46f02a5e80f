package roles

import "context"

type ctxKey struct{}

type resolved struct {
	user uint
	set  Set
}

// NewContext returns ctx carrying the already resolved role set of user.
func NewContext(ctx context.Context, user uint, set Set) context.Context {
	return context.WithValue(ctx, ctxKey{}, resolved{user: user, set: set})
}

// FromContext returns the role set carried for user. A set carried for a
// different user is not returned.
func FromContext(ctx context.Context, user uint) (Set, bool) {
	v, ok := ctx.Value(ctxKey{}).(resolved)
	if !ok || v.user != user {
		return 0, false
	}
	return v.set, true
}

// Cached returns the role set carried in ctx for user, asking r only when
// the request has not resolved it yet.
func Cached(ctx context.Context, r Resolver, user uint) (Set, error) {
	if set, ok := FromContext(ctx, user); ok {
		return set, nil
	}
	return r.Roles(ctx, user)
}
