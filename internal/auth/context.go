package auth

import (
	"context"

	"github.com/wolfeidau/traceledger/internal/models"
)

type contextKey int

const (
	callerContextKey contextKey = iota
)

// WithCaller returns a context carrying the authenticated caller identity,
// normalized.
func WithCaller(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, callerContextKey, id.Normalize())
}

// CallerFromContext extracts the authenticated caller identity.
// Returns false if the request was not authenticated.
func CallerFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(callerContextKey).(models.Identity)
	return id, ok && !id.IsZero()
}
