package auth

import (
	"context"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type ctxKey struct{}

func WithActor(ctx context.Context, actor appointment.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFromContext returns the actor resolved by the authentication
// middleware.
func ActorFromContext(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(appointment.Actor)
	return actor, ok
}
