package admission

import (
	"context"
	"errors"
	"fmt"

	"rekber-service/internal/activity"
	"rekber-service/internal/logger"
	"rekber-service/internal/participant"
	"rekber-service/internal/room"
	"rekber-service/internal/session"
)

// Engine decides and applies room admissions. It is the only writer of
// participant membership state; everything else reads.
type Engine struct {
	participants participant.Repository
	rooms        room.Repository
	activity     activity.Store
	now          clock
}

func NewEngine(
	participants participant.Repository,
	rooms room.Repository,
	activityStore activity.Store,
) *Engine {
	return &Engine{
		participants: participants,
		rooms:        rooms,
		activity:     activityStore,
		now:          realClock,
	}
}

// Decide computes the admission verdict for (room, role, identifier).
// Every vacancy check queries the repository at call time; a cached
// occupancy view would decide against stale state during the exact
// races this engine exists to arbitrate.
func (e *Engine) Decide(
	ctx context.Context,
	roomID int64,
	role participant.Role,
	identifier string,
) (*Decision, error) {

	if role == participant.RoleGM {
		return e.decideGM(ctx, roomID, identifier)
	}

	// 1. The identifier may already be in this room.
	existing, err := e.participants.FindActiveByIdentifier(ctx, roomID, identifier)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Role == role {
			return &Decision{Outcome: OutcomeReconnect, Participant: existing}, nil
		}

		// Different role held: switch only into a vacant seat.
		occupant, err := e.participants.FindActiveByRole(ctx, roomID, role)
		if err != nil {
			return nil, err
		}
		if occupant == nil {
			return &Decision{Outcome: OutcomeSwitchRole, Participant: existing}, nil
		}

		return &Decision{
			Outcome: OutcomeRejected,
			Reason:  ReasonRoleUnavailable,
		}, nil
	}

	// 2. One active room per identifier. A membership in another room
	// blocks this one unless that room is terminal or expired.
	elsewhere, err := e.participants.FindActiveElsewhere(ctx, identifier, roomID)
	if err != nil {
		return nil, err
	}
	if elsewhere != nil {
		otherRoom, err := e.rooms.FindByID(ctx, elsewhere.RoomID)
		if err != nil {
			return nil, err
		}
		if otherRoom != nil && otherRoom.Active(e.now()) {
			return &Decision{
				Outcome:         OutcomeRejected,
				Reason:          ReasonActiveElsewhere,
				SuggestedAction: ActionRedirectToActive,
				ActiveRoomID:    elsewhere.RoomID,
			}, nil
		}
	}

	// 3. Fresh join: the seat must be vacant.
	occupant, err := e.participants.FindActiveByRole(ctx, roomID, role)
	if err != nil {
		return nil, err
	}
	if occupant != nil {
		alt, err := e.altRole(ctx, roomID, role)
		if err != nil {
			return nil, err
		}
		return &Decision{
			Outcome:         OutcomeRejected,
			Reason:          ReasonRoleUnavailable,
			AlternativeRole: alt,
		}, nil
	}

	return &Decision{Outcome: OutcomeJoin}, nil
}

// decideGM handles the admin seat: no cross-room exclusivity, no
// trading occupancy, still at most one online gm per room.
func (e *Engine) decideGM(ctx context.Context, roomID int64, identifier string) (*Decision, error) {
	existing, err := e.participants.FindActiveByRole(ctx, roomID, participant.RoleGM)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Identifier != "" && existing.Identifier == identifier {
			return &Decision{Outcome: OutcomeReconnect, Participant: existing}, nil
		}
		return &Decision{
			Outcome: OutcomeRejected,
			Reason:  ReasonRoleUnavailable,
		}, nil
	}

	return &Decision{Outcome: OutcomeJoin}, nil
}

// Admit decides and then applies the decision: creates, re-roles, or
// touches the participant, and recomputes the room status. The
// returned decision always reflects what actually happened; a join
// that loses the create race comes back as a role_unavailable
// rejection, not an error.
func (e *Engine) Admit(ctx context.Context, req AdmitRequest) (*participant.Participant, *Decision, error) {

	d, err := e.Decide(ctx, req.RoomID, req.Role, req.Identifier)
	if err != nil {
		return nil, nil, err
	}

	switch d.Outcome {

	case OutcomeReconnect:
		if err := e.participants.Touch(ctx, d.Participant.ID); err != nil && !errors.Is(err, participant.ErrNotFound) {
			return nil, nil, err
		}
		d.Participant.Online = true
		d.Participant.LastSeen = e.now()
		e.record(ctx, d.Participant, activity.EventReconnected, req)
		return d.Participant, d, nil

	case OutcomeSwitchRole:
		err := e.participants.ChangeRole(ctx, d.Participant.ID, req.Role)
		if errors.Is(err, participant.ErrRoleTaken) {
			// Lost the seat between Decide and ChangeRole.
			return nil, &Decision{
				Outcome: OutcomeRejected,
				Reason:  ReasonRoleUnavailable,
			}, nil
		}
		if err != nil {
			return nil, nil, err
		}

		d.Participant.Role = req.Role
		d.Participant.LastSeen = e.now()
		e.refreshRoomStatus(ctx, req.RoomID)
		e.record(ctx, d.Participant, activity.EventRoleSwitched, req)
		return d.Participant, d, nil

	case OutcomeJoin:
		token, err := session.NewToken()
		if err != nil {
			return nil, nil, err
		}

		p := &participant.Participant{
			RoomID:       req.RoomID,
			Role:         req.Role,
			Name:         req.Name,
			Contact:      req.Contact,
			SessionToken: token,
			Identifier:   req.Identifier,
			Context: participant.SessionContext{
				Method:    "join",
				At:        e.now(),
				UserAgent: req.UserAgent,
				IP:        req.IP,
			},
		}

		err = e.participants.Create(ctx, p)
		if errors.Is(err, participant.ErrRoleTaken) {
			// Concurrent double-join; the repository's uniqueness
			// constraint made the other writer win.
			alt, altErr := e.altRole(ctx, req.RoomID, req.Role)
			if altErr != nil {
				return nil, nil, altErr
			}
			return nil, &Decision{
				Outcome:         OutcomeRejected,
				Reason:          ReasonRoleUnavailable,
				AlternativeRole: alt,
			}, nil
		}
		if err != nil {
			return nil, nil, err
		}

		e.refreshRoomStatus(ctx, req.RoomID)
		e.record(ctx, p, activity.EventJoined, req)
		return p, d, nil

	case OutcomeRejected:
		return nil, d, nil
	}

	return nil, nil, fmt.Errorf("admission: unknown outcome %q", d.Outcome)
}

// Leave removes the identifier's participant from the room and frees
// its seat. Returns (nil, nil) when there was nothing to leave.
func (e *Engine) Leave(ctx context.Context, roomID int64, identifier string) (*participant.Participant, error) {
	p, err := e.participants.FindActiveByIdentifier(ctx, roomID, identifier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	if err := e.participants.Delete(ctx, p.ID); err != nil {
		return nil, err
	}

	e.refreshRoomStatus(ctx, roomID)
	e.record(ctx, p, activity.EventLeft, AdmitRequest{RoomID: roomID, Identifier: identifier})
	return p, nil
}

// refreshRoomStatus recomputes free/in_use from live trading
// occupancy. Terminal rooms are never moved back. Status is a derived
// convenience for the rest of the marketplace; failures here must not
// fail the admission that already happened.
func (e *Engine) refreshRoomStatus(ctx context.Context, roomID int64) {
	rm, err := e.rooms.FindByID(ctx, roomID)
	if err != nil || rm == nil || rm.Status.Terminal() {
		return
	}

	occupied := false
	for _, role := range participant.TradingRoles {
		p, err := e.participants.FindActiveByRole(ctx, roomID, role)
		if err != nil {
			return
		}
		if p != nil {
			occupied = true
			break
		}
	}

	next := room.StatusFree
	if occupied {
		next = room.StatusInUse
	}
	if next == rm.Status {
		return
	}

	if err := e.rooms.UpdateStatus(ctx, roomID, next); err != nil {
		logger.Warn("failed to update room status", map[string]any{
			"room_id": roomID,
			"status":  string(next),
			"error":   err.Error(),
		})
	}
}

func (e *Engine) record(ctx context.Context, p *participant.Participant, event string, req AdmitRequest) {
	if e.activity == nil {
		return
	}

	err := e.activity.Record(ctx, activity.Entry{
		RoomID:        p.RoomID,
		ParticipantID: p.ID,
		Identifier:    p.Identifier,
		Event:         event,
		Role:          string(p.Role),
		UserAgent:     req.UserAgent,
		IP:            req.IP,
		At:            e.now(),
	})
	if err != nil {
		logger.Warn("failed to record room activity", map[string]any{
			"room_id": p.RoomID,
			"event":   event,
			"error":   err.Error(),
		})
	}
}
