// Package identity carries the caller's member id through a request.
// The id is opaque: it is never checked against credentials.
package identity

import "context"

type contextKey struct{}

func WithActor(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, contextKey{}, memberID)
}

// ActorID returns the caller's member id, or "" if the request carried none.
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Actor returns the caller's member id as a pointer, nil when absent.
func Actor(ctx context.Context) *string {
	id := ActorID(ctx)
	if id == "" {
		return nil
	}
	return &id
}
