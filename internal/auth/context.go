package auth

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

type contextKey string

const contextKeyPrincipal contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(Principal)
	return p, ok
}
