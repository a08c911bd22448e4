package middleware

import (
	"context"

	"rekber-service/internal/participant"
	"rekber-service/internal/room"
)

// unexported, collision-proof context keys
type participantContextKeyType struct{}
type roomContextKeyType struct{}
type identifierContextKeyType struct{}

var (
	participantKey = participantContextKeyType{}
	roomKey        = roomContextKeyType{}
	identifierKey  = identifierContextKeyType{}
)

// WithSession attaches the resolved (participant, room, identifier)
// triple to the context. Downstream handlers read it back through the
// accessors below; nothing in this core uses package-level state.
func WithSession(
	ctx context.Context,
	p *participant.Participant,
	rm *room.Room,
	identifier string,
) context.Context {
	ctx = context.WithValue(ctx, participantKey, p)
	ctx = context.WithValue(ctx, roomKey, rm)
	ctx = context.WithValue(ctx, identifierKey, identifier)
	return ctx
}

// ParticipantFromContext extracts the authenticated participant.
func ParticipantFromContext(ctx context.Context) (*participant.Participant, bool) {
	p, ok := ctx.Value(participantKey).(*participant.Participant)
	return p, ok
}

// RoomFromContext extracts the resolved room.
func RoomFromContext(ctx context.Context) (*room.Room, bool) {
	rm, ok := ctx.Value(roomKey).(*room.Room)
	return rm, ok
}

// IdentifierFromContext extracts the browser identifier.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identifierKey).(string)
	return id, ok
}
