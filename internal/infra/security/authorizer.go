package security

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("security: authentication required")
	ErrForbidden       = errors.New("security: acting for another requester")
)

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequesterAuthorizer lets a message through only when the authenticated
// principal is the requester it names. Messages that name no requester,
// such as provider callbacks, pass untouched.
type RequesterAuthorizer struct{}

func (RequesterAuthorizer) Authorize(ctx context.Context, message any) error {
	scoped, ok := message.(interface{ Requester() string })
	if !ok {
		return nil
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if scoped.Requester() != p.Subject && !p.HasRole("admin") {
		return ErrForbidden
	}
	return nil
}
