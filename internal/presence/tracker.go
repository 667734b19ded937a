package presence

import (
	"sync"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/element"
	"collabboard/internal/protocol"
)

// Participant: presence view of a connected user
type Participant struct {
	UserID string
	Name   string
	Color  string
}

// Tracker: ephemeral per-room presence. Nothing here is part of room_state.
type Tracker struct {
	colors       *ColorGenerator
	userColors   map[string]string // userID -> color, kept for the room's lifetime
	participants map[string]Participant
	cursors      map[string]protocol.Cursor
	sanitize     func(string) string
	mu           sync.RWMutex
}

func NewTracker(roomID string) *Tracker {
	return &Tracker{
		colors:       NewColorGenerator(roomID),
		userColors:   make(map[string]string),
		participants: make(map[string]Participant),
		cursors:      make(map[string]protocol.Cursor),
		sanitize:     element.SanitizeString,
	}
}

// Enter: registers the identity and assigns its room color
func (t *Tracker) Enter(id auth.Identity) Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	color, ok := t.userColors[id.ID]
	if !ok {
		color = t.colors.NextColor()
		t.userColors[id.ID] = color
	}
	p := Participant{UserID: id.ID, Name: id.Name, Color: color}
	t.participants[id.ID] = p
	return p
}

// Remove: forgets the user's cursor and presence entry
func (t *Tracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.participants, userID)
	delete(t.cursors, userID)
}

// Present: whether the user currently has a presence entry
func (t *Tracker) Present(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.participants[userID]
	return ok
}

// Color: room color of a user, empty if never seen
func (t *Tracker) Color(userID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.userColors[userID]
}

// SetCursor: overwrites the user's last known cursor and returns the outgoing event
func (t *Tracker) SetCursor(roomID, userID string, c protocol.Cursor) protocol.CursorMove {
	t.mu.Lock()
	defer t.mu.Unlock()

	c.UserID = userID
	t.cursors[userID] = c
	return protocol.CursorMove{
		RoomID: roomID,
		UserID: userID,
		Cursor: &c,
		Color:  t.userColors[userID],
	}
}

// Cursor: last known cursor of a user
func (t *Tracker) Cursor(userID string) (protocol.Cursor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.cursors[userID]
	return c, ok
}

// Cursors: copy of every known cursor
func (t *Tracker) Cursors() map[string]protocol.Cursor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]protocol.Cursor, len(t.cursors))
	for k, v := range t.cursors {
		out[k] = v
	}
	return out
}

// Participants: present users
func (t *Tracker) Participants() []Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Participant, 0, len(t.participants))
	for _, p := range t.participants {
		out = append(out, p)
	}
	return out
}

// Chat: attributes a chat message to the authenticated identity.
// Whatever identity the client declared is discarded.
func (t *Tracker) Chat(roomID string, id auth.Identity, message string) protocol.Chat {
	return protocol.Chat{
		RoomID:    roomID,
		UserID:    id.ID,
		Name:      id.Name,
		Message:   t.sanitize(message),
		Timestamp: time.Now().UnixMilli(),
	}
}
