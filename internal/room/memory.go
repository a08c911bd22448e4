package room

import (
	"context"
	"sync"
)

// MemoryRepository backs tests and local development.
type MemoryRepository struct {
	mu    sync.Mutex
	rooms map[int64]*Room
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rooms: make(map[int64]*Room)}
}

var _ Repository = (*MemoryRepository)(nil)

// Put inserts or replaces a room. Test setup helper.
func (r *MemoryRepository) Put(rm *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm.Status == "" {
		rm.Status = StatusFree
	}
	c := *rm
	r.rooms[rm.ID] = &c
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return nil, nil
	}
	c := *rm
	return &c, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return nil
	}
	rm.Status = status
	return nil
}
