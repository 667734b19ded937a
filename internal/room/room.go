package room

import (
	"sync"
	"time"

	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/presence"
	"collabboard/internal/user"
)

// Room represents a collaborative whiteboard room
type Room struct {
	ID          string
	Connections map[string]*user.User // connection id -> user
	Presence    *presence.Tracker
	LastActive  time.Time
	CreatedAt   time.Time

	elements *Elements
	bc       *Broadcaster
	mu       sync.RWMutex
}

func newRoom(id string, bc *Broadcaster) *Room {
	now := time.Now()
	return &Room{
		ID:          id,
		Connections: make(map[string]*user.User),
		Presence:    presence.NewTracker(id),
		LastActive:  now,
		CreatedAt:   now,
		elements:    newElements(),
		bc:          bc,
	}
}

// join: adds u and queues its room_state while holding the lock, so every later
// commit reaches u after the snapshot
func (r *Room) join(u *user.User, maxRoomSize int) ([]element.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, already := r.Connections[u.ID]; !already && maxRoomSize > 0 && len(r.Connections) >= maxRoomSize {
		return nil, errs.ErrRoomFull
	}

	r.Connections[u.ID] = u
	r.Presence.Enter(u.Identity)
	r.LastActive = time.Now()

	snapshot := r.elements.Snapshot()
	if err := syncNewUser(r.ID, snapshot, u); err != nil {
		delete(r.Connections, u.ID)
		return nil, err
	}
	return snapshot, nil
}

// leave: removes u, reports whether the room is now empty
func (r *Room) leave(u *user.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Connections, u.ID)

	// Same identity may still be here on another connection
	stillPresent := false
	for _, other := range r.Connections {
		if other.UserID() == u.UserID() {
			stillPresent = true
			break
		}
	}
	if !stillPresent {
		r.Presence.Remove(u.UserID())
	}

	r.LastActive = time.Now()
	return len(r.Connections) == 0
}

// Commit: applies mutate and fans msg out to everyone except senderID as one step.
// A mutate error aborts the broadcast.
func (r *Room) Commit(senderID string, msg []byte, mutate func(els *Elements) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mutate != nil {
		if err := mutate(r.elements); err != nil {
			return err
		}
	}
	r.LastActive = time.Now()

	if msg != nil {
		r.bc.fanOut(r.Connections, msg, senderID)
	}
	return nil
}

// Has: whether connection id is a participant
func (r *Room) Has(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.Connections[connID]
	return ok
}

// Snapshot: point-in-time deep copy of the elements
func (r *Room) Snapshot() []element.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.elements.Snapshot()
}

// GetObject: copy of one element
func (r *Room) GetObject(id string) (element.Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.elements.Get(id)
}

// ObjectCount: returns number of elements in room
func (r *Room) ObjectCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.elements.Len()
}

// ConnectionCount: returns number of connections in room
func (r *Room) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Connections)
}

// GetConnections: returns snapshot of current connections (for broadcasting)
func (r *Room) GetConnections() map[string]*user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]*user.User, len(r.Connections))
	for k, v := range r.Connections {
		snapshot[k] = v
	}
	return snapshot
}

// RemoveConnection: removes user connection from room (cleanup after failed broadcast)
func (r *Room) RemoveConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Connections, connID)
}

// GetUserColor: returns the user's presence color in this room
func (r *Room) GetUserColor(userID string) string {
	return r.Presence.Color(userID)
}
