package participant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRoleTaken is returned by Create when another participant is
	// already online for the same (room, role).
	ErrRoleTaken = errors.New("participant: role already taken")

	ErrNotFound = errors.New("participant: not found")
)

// Role is the seat a participant occupies in a room.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleGM     Role = "gm"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleGM:
		return true
	}
	return false
}

// Other returns the opposite trading role. Only meaningful for
// buyer/seller; gm has no counterpart.
func (r Role) Other() (Role, bool) {
	switch r {
	case RoleBuyer:
		return RoleSeller, true
	case RoleSeller:
		return RoleBuyer, true
	}
	return "", false
}

// TradingRoles are the roles that occupy a room's two seats. GM access
// goes through the admin path and never counts toward occupancy.
var TradingRoles = []Role{RoleBuyer, RoleSeller}

// SessionContext records how a session came to exist. Free-form
// diagnostic data, persisted as JSON alongside the participant.
type SessionContext struct {
	Method    string    `json:"method"` // "join", "switch_role", "migration"
	At        time.Time `json:"at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

// Participant is one room-scoped membership: a role bound to a session
// token and, except for legacy records, a browser identifier.
type Participant struct {
	ID           uuid.UUID
	RoomID       int64
	Role         Role
	Name         string
	Contact      string
	SessionToken string

	// Identifier is empty for records created before identifier
	// tracking existed. Backfilled in place on first successful match.
	Identifier string

	Online   bool
	JoinedAt time.Time
	LastSeen time.Time

	Context SessionContext
}

// Repository is the participant store. Reads return (nil, nil) when no
// record matches. All lookups consider online records only.
type Repository interface {
	FindActiveByIdentifier(ctx context.Context, roomID int64, identifier string) (*Participant, error)
	FindActiveByToken(ctx context.Context, roomID int64, token string) (*Participant, error)
	FindActiveByRole(ctx context.Context, roomID int64, role Role) (*Participant, error)

	// FindActiveElsewhere returns an online participant held by the
	// identifier in any room other than excludeRoomID.
	FindActiveElsewhere(ctx context.Context, identifier string, excludeRoomID int64) (*Participant, error)

	Create(ctx context.Context, p *Participant) error

	// AttachIdentifier backfills the identifier on a legacy record.
	// A record that already has one is left untouched.
	AttachIdentifier(ctx context.Context, id uuid.UUID, identifier string) error

	// ChangeRole moves the record to a new role in place. The session
	// token and record identity are preserved.
	ChangeRole(ctx context.Context, id uuid.UUID, role Role) error

	// Touch marks the participant present: last_seen=now, online=true.
	Touch(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}
