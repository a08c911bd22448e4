package participant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps participants in a mutex-guarded map. It
// enforces the same one-online-per-(room, role) constraint as the
// Postgres partial index, so the decision engine behaves identically
// against either store.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Participant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*Participant)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) FindActiveByIdentifier(
	_ context.Context,
	roomID int64,
	identifier string,
) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.records {
		if p.Online && p.RoomID == roomID && p.Identifier != "" && p.Identifier == identifier {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindActiveByToken(
	_ context.Context,
	roomID int64,
	token string,
) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.records {
		if p.Online && p.RoomID == roomID && p.SessionToken == token {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindActiveByRole(
	_ context.Context,
	roomID int64,
	role Role,
) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.records {
		if p.Online && p.RoomID == roomID && p.Role == role {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindActiveElsewhere(
	_ context.Context,
	identifier string,
	excludeRoomID int64,
) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *Participant
	for _, p := range r.records {
		if !p.Online || p.RoomID == excludeRoomID || p.Identifier == "" || p.Identifier != identifier {
			continue
		}
		if latest == nil || p.LastSeen.After(latest.LastSeen) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	return clone(latest), nil
}

func (r *MemoryRepository) Create(_ context.Context, p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.Online && existing.RoomID == p.RoomID && existing.Role == p.Role {
			return ErrRoleTaken
		}
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	now := time.Now()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = now
	}
	p.Online = true

	r.records[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) AttachIdentifier(_ context.Context, id uuid.UUID, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[id]
	if !ok || p.Identifier != "" {
		return nil // idempotent backfill
	}
	p.Identifier = identifier
	return nil
}

func (r *MemoryRepository) ChangeRole(_ context.Context, id uuid.UUID, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}

	for _, other := range r.records {
		if other.ID != id && other.Online && other.RoomID == p.RoomID && other.Role == role {
			return ErrRoleTaken
		}
	}

	p.Role = role
	p.LastSeen = time.Now()
	return nil
}

func (r *MemoryRepository) Touch(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	p.LastSeen = time.Now()
	p.Online = true
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	return nil
}

func clone(p *Participant) *Participant {
	c := *p
	return &c
}
