// Package auth authenticates reviewers and carries their identity through
// the request context. Authorization beyond authentication lives in the
// permission gate.
package auth

import (
	"context"
	"errors"

	"github.com/lexroom/redline/pkg/permission"
)

// Principal is the authenticated reviewer making a request.
type Principal struct {
	UserID string
	Role   permission.Role
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches a Principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal from the context.
func GetPrincipal(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return Principal{}, errors.New("no principal in context")
	}
	return p, nil
}
