package middleware

import (
	"context"

	"github.com/foodway/foodway-backend/pkg/enums"
)

type actorKey struct{}

// Actor is the authenticated caller: a worker from a bearer token, or the ordering flow
// from the service token.
type Actor struct {
	ID   string
	Role enums.ActorRole
}

// ServiceActor identifies internal calls made with the service token.
var ServiceActor = Actor{ID: "ordering-flow", Role: enums.ActorRoleService}

func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.ID != ""
}

// ActorIDFromContext returns the authenticated actor id. For delivery workers this is the worker id.
func ActorIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.ID
}

// WorkerIDFromContext returns the caller's id only when the caller is a delivery worker.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != enums.ActorRoleDelivery {
		return "", false
	}
	return actor.ID, true
}
