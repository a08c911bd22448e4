package room

import (
	"context"
	"time"
)

// Status is the coarse room lifecycle state. The session core only
// moves rooms between free and in_use; terminal states are set by the
// transaction flow, which this core treats as an outside collaborator.
type Status string

const (
	StatusFree      Status = "free"
	StatusInUse     Status = "in_use"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the room can never be re-entered.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type Room struct {
	ID     int64
	Status Status

	// PINHash is a bcrypt hash of the room's access PIN. Empty means
	// the room is open.
	PINHash string

	// ExpiresAt is optional; zero means no expiry.
	ExpiresAt time.Time

	CreatedAt time.Time
}

// Active reports whether the room still counts against cross-room
// exclusivity: non-terminal and not past its expiry, if one is set.
func (r *Room) Active(now time.Time) bool {
	if r.Status.Terminal() {
		return false
	}
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return false
	}
	return true
}

// Repository is the read-mostly room store. FindByID returns (nil, nil)
// when the room does not exist.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Room, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}
