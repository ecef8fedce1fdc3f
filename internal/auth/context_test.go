package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestActorFromContext(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		assert.Equal(t, "", ActorFromContext(context.Background()))
	})

	t.Run("context value", func(t *testing.T) {
		ctx := WithActor(context.Background(), "user-1")
		assert.Equal(t, "user-1", ActorFromContext(ctx))
	})

	t.Run("grpc metadata", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-user-id", "user-2"))
		assert.Equal(t, "user-2", ActorFromContext(ctx))
	})

	t.Run("context value wins over metadata", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-user-id", "user-2"))
		ctx = WithActor(ctx, "user-1")
		assert.Equal(t, "user-1", ActorFromContext(ctx))
	})
}
