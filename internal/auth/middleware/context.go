package auth

import (
	"context"

	"github.com/mind-engage/secacademy-lms/internal/rbac"
)

// Principal is the authenticated caller.
type Principal struct {
	Sub  string
	Role string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return rbac.WithRole(rbac.WithSubject(ctx, p.Sub), p.Role)
}

func PrincipalFromContext(ctx context.Context) Principal {
	return Principal{Sub: rbac.SubjectFromContext(ctx), Role: rbac.RoleFromContext(ctx)}
}
