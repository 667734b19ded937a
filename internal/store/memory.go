package store

import (
	"context"
	"sort"
	"sync"

	"collabboard/internal/errs"
)

// MemoryRepository: Repository kept in process memory, used when no database is configured
type MemoryRepository struct {
	bySlug map[string]Room
	mu     sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bySlug: make(map[string]Room)}
}

func (mr *MemoryRepository) Create(_ context.Context, room *Room) (*Room, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, exists := mr.bySlug[room.Slug]; exists {
		return nil, errs.ErrSlugTaken
	}
	mr.bySlug[room.Slug] = *room
	return room, nil
}

func (mr *MemoryRepository) FindBySlug(_ context.Context, slug string) (*Room, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	room, ok := mr.bySlug[slug]
	if !ok {
		return nil, errs.ErrRoomNotFound
	}
	return &room, nil
}

func (mr *MemoryRepository) ListByAdmin(_ context.Context, adminID string) ([]Room, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	var rooms []Room
	for _, room := range mr.bySlug {
		if room.AdminID == adminID {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	return rooms, nil
}
