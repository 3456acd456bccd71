package auth

import (
	"context"
	"strings"
)

type ownerContextKey struct{}

// ContextWithOwner attaches the authenticated owner id to the context.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, strings.TrimSpace(ownerID))
}

// OwnerFromContext extracts the authenticated owner id from the context.
func OwnerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(ownerContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
