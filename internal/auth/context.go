package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type actorKey struct{}

// WithActor records the user acting on behalf of the request.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the acting user id, or "" when unknown. It checks
// values set by WithActor first and then incoming gRPC metadata.
func ActorFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(actorKey{}).(string); ok && val != "" {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get("x-user-id"); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}
