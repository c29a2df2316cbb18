package shared

import (
	"context"

	"github.com/procura-erp/procura/internal/workflow"
)

type actorContextKey struct{}

// ContextWithActor stores the acting identity in context.
func ContextWithActor(ctx context.Context, actor workflow.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting identity from context. The zero
// Actor is returned when none is present.
func ActorFromContext(ctx context.Context) workflow.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(workflow.Actor)
	return actor
}
