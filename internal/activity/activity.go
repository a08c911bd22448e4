package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names the session transitions worth an audit trail.
const (
	EventJoined       = "joined"
	EventReconnected  = "reconnected"
	EventRoleSwitched = "role_switched"
	EventLeft         = "left"
	EventMigrated     = "session_migrated"
)

// Entry is one room activity record.
type Entry struct {
	RoomID        int64     `json:"room_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Identifier    string    `json:"identifier,omitempty"`
	Event         string    `json:"event"`
	Role          string    `json:"role,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	IP            string    `json:"ip,omitempty"`
	At            time.Time `json:"at"`
}

// Store persists activity entries. Recording is best-effort: callers
// log failures but never fail the request over them.
type Store interface {
	Record(ctx context.Context, e Entry) error
}
