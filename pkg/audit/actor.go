package audit

import "context"

// Actor describes the principal responsible for a tracked mutation.
type Actor struct {
	// ID is the stable identifier of the principal.
	ID string `json:"id"`

	// Name is an optional display name.
	Name string `json:"name,omitempty"`

	// IPAddress is the source address of the triggering request.
	IPAddress string `json:"ipAddress,omitempty"`
}

type actorContextKey struct{}

// WithActor attaches the acting principal to the context for the duration of
// a request. Capture reads it back when building records.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached to the context. When none is
// present it returns the system sentinel, so background work is still
// attributable.
func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorContextKey{}).(Actor); ok && actor.ID != "" {
		return actor
	}
	return Actor{ID: SystemActor}
}
