package admission

import (
	"context"
	"time"

	"rekber-service/internal/participant"
)

// Outcome is the result of an admission decision.
type Outcome string

const (
	// OutcomeJoin: no record for this identifier in the room and the
	// requested role is vacant; create a new participant.
	OutcomeJoin Outcome = "join"

	// OutcomeReconnect: the identifier already holds exactly this role
	// in this room; reuse the record, refresh presence.
	OutcomeReconnect Outcome = "reconnect"

	// OutcomeSwitchRole: the identifier holds a different role and the
	// requested one is vacant; move the record in place. One
	// identifier never holds two roles in the same room.
	OutcomeSwitchRole Outcome = "switch_role"

	OutcomeRejected Outcome = "rejected"
)

type RejectReason string

const (
	// ReasonRoleUnavailable: another identifier got the role first.
	ReasonRoleUnavailable RejectReason = "role_unavailable"

	// ReasonActiveElsewhere: the identifier holds an active
	// participant in a different, still-active room.
	ReasonActiveElsewhere RejectReason = "already_active_elsewhere"
)

// ActionRedirectToActive tells the caller to send the visitor back to
// the room they are already in.
const ActionRedirectToActive = "redirect_to_active"

// Decision is an admission verdict plus the data the caller needs to
// act on it.
type Decision struct {
	Outcome Outcome

	// Participant is the existing record for reconnect and
	// switch_role.
	Participant *participant.Participant

	// Rejection details.
	Reason          RejectReason
	AlternativeRole participant.Role
	SuggestedAction string
	ActiveRoomID    int64
}

// CanJoin is a convenience for callers that only care whether the
// visitor gets in.
func (d *Decision) CanJoin() bool {
	return d.Outcome != OutcomeRejected
}

// AdmitRequest carries everything needed to apply a join decision.
type AdmitRequest struct {
	RoomID     int64
	Role       participant.Role
	Identifier string

	Name    string
	Contact string

	UserAgent string
	IP        string
}

// clock exists so expiry-sensitive tests can pin time.
type clock func() time.Time

func realClock() time.Time { return time.Now() }

// altRole returns the opposite trading role when it is vacant, so the
// caller can offer an auto-switch prompt. Queried live, same as every
// other vacancy check.
func (e *Engine) altRole(ctx context.Context, roomID int64, requested participant.Role) (participant.Role, error) {
	other, ok := requested.Other()
	if !ok {
		return "", nil
	}

	occupant, err := e.participants.FindActiveByRole(ctx, roomID, other)
	if err != nil {
		return "", err
	}
	if occupant != nil {
		return "", nil
	}
	return other, nil
}
