package occupancy

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      UserID
	Username    string
	DisplayName string
	IsAdmin     bool
}

type principalContextKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || principal.UserID.IsZero() {
		return Principal{}, false
	}
	return principal, true
}

// RequireAdmin returns ErrAdminRequired unless the principal is an administrator.
func RequireAdmin(principal Principal) error {
	if principal.UserID.IsZero() || !principal.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}
