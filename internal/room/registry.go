package room

import (
	"sort"
	"sync"
	"time"

	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/user"
)

// Registry: roomID -> Room for one server instance. Rooms are created on first
// reference and evicted when their last participant leaves.
type Registry struct {
	rooms       map[string]*Room
	broadcaster *Broadcaster
	maxRooms    int
	maxRoomSize int
	onCreate    func(roomID string)
	onEvict     func(roomID string)
	mu          sync.Mutex
}

type Option func(*Registry)

// WithOnCreate: called (under the registry lock) when a room is created
func WithOnCreate(fn func(roomID string)) Option {
	return func(rg *Registry) { rg.onCreate = fn }
}

// WithOnEvict: called (under the registry lock) when a room is torn down
func WithOnEvict(fn func(roomID string)) Option {
	return func(rg *Registry) { rg.onEvict = fn }
}

// WithMaxRooms: 0 means unlimited
func WithMaxRooms(n int) Option {
	return func(rg *Registry) { rg.maxRooms = n }
}

// WithMaxRoomSize: 0 means unlimited
func WithMaxRoomSize(n int) Option {
	return func(rg *Registry) { rg.maxRoomSize = n }
}

func WithBroadcaster(b *Broadcaster) Option {
	return func(rg *Registry) { rg.broadcaster = b }
}

func NewRegistry(opts ...Option) *Registry {
	rg := &Registry{
		rooms: make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(rg)
	}
	if rg.broadcaster == nil {
		rg.broadcaster = NewBroadcaster(nil, nil)
	}
	return rg
}

// GetOrCreate: existing room or a fresh empty one
func (rg *Registry) GetOrCreate(roomID string) (*Room, error) {
	if roomID == "" {
		return nil, errs.ErrRoomCodeMissing
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	return rg.getOrCreateLocked(roomID)
}

func (rg *Registry) getOrCreateLocked(roomID string) (*Room, error) {
	if rm, ok := rg.rooms[roomID]; ok {
		return rm, nil
	}

	if rg.maxRooms > 0 && len(rg.rooms) >= rg.maxRooms {
		return nil, errs.ErrServerFull
	}

	rm := newRoom(roomID, rg.broadcaster)
	rg.rooms[roomID] = rm
	if rg.onCreate != nil {
		rg.onCreate(roomID)
	}
	return rm, nil
}

// Join: adds u to the room and returns the snapshot that was queued to it
func (rg *Registry) Join(roomID string, u *user.User) (*Room, []element.Element, error) {
	if roomID == "" {
		return nil, nil, errs.ErrRoomCodeMissing
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	_, existed := rg.rooms[roomID]
	rm, err := rg.getOrCreateLocked(roomID)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := rm.join(u, rg.maxRoomSize)
	if err != nil {
		if !existed {
			rg.evictLocked(roomID)
		}
		return nil, nil, err
	}
	return rm, snapshot, nil
}

// Leave: removes u; the room is evicted when it becomes empty
func (rg *Registry) Leave(roomID string, u *user.User) (evicted bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rm, ok := rg.rooms[roomID]
	if !ok {
		return false
	}

	if rm.leave(u) {
		rg.evictLocked(roomID)
		return true
	}
	return false
}

func (rg *Registry) evictLocked(roomID string) {
	delete(rg.rooms, roomID)
	if rg.onEvict != nil {
		rg.onEvict(roomID)
	}
}

// Get: checks if a room exists and returns it
func (rg *Registry) Get(roomID string) (*Room, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rm, ok := rg.rooms[roomID]
	return rm, ok
}

// Count: returns the total number of rooms
func (rg *Registry) Count() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return len(rg.rooms)
}

// IDs: sorted room ids
func (rg *Registry) IDs() []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	ids := make([]string, 0, len(rg.rooms))
	for id := range rg.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cleanup: evicts rooms that are empty and were idle longer than maxIdle.
// Rooms only stay empty when created through GetOrCreate without a join.
func (rg *Registry) Cleanup(maxIdle time.Duration) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	now := time.Now()
	for id, rm := range rg.rooms {
		rm.mu.RLock()
		empty := len(rm.Connections) == 0
		inactive := now.Sub(rm.LastActive) > maxIdle
		rm.mu.RUnlock()

		if empty && inactive {
			rg.evictLocked(id)
		}
	}
}
