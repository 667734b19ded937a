package transport

import (
	"sync"

	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"
)

// Session: an authenticated connection and the one room it is attached to
type Session struct {
	gw *Gateway
	u  *user.User
	rm *room.Room
	mu sync.Mutex
}

func newSession(gw *Gateway, u *user.User) *Session {
	return &Session{gw: gw, u: u}
}

func (s *Session) User() *user.User {
	return s.u
}

func (s *Session) Room() *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rm
}

// AttachToRoom: no-op for the attached room; another room is left first.
// The room_state snapshot goes to this session only.
func (s *Session) AttachToRoom(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rm != nil && s.rm.ID == roomID {
		return nil
	}
	if s.rm != nil {
		s.detachLocked()
	}

	rm, snapshot, err := s.gw.registry.Join(roomID, s.u)
	if err != nil {
		return err
	}
	s.rm = rm
	s.gw.metrics.Joined()
	s.gw.logger.Info("Joined room", "room", roomID, "user", s.u.UserID(), "conn", s.u.ID, "elements", len(snapshot))

	color := rm.GetUserColor(s.u.UserID())
	s.gw.unicast(s.u, protocol.Authenticated{
		RoomID: roomID,
		UserID: s.u.UserID(),
		Name:   s.u.Identity.Name,
		Email:  s.u.Identity.Email,
		Color:  color,
	})
	s.gw.announce(rm, s.u, protocol.Presence{
		RoomID: roomID,
		UserID: s.u.UserID(),
		Name:   s.u.Identity.Name,
		Color:  color,
		Status: protocol.PresenceJoined,
	})
	return nil
}

// Detach: leaves the attached room, if any
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
}

func (s *Session) detachLocked() {
	rm := s.rm
	if rm == nil {
		return
	}
	s.rm = nil

	evicted := s.gw.registry.Leave(rm.ID, s.u)
	s.gw.metrics.Left()
	s.gw.logger.Info("Left room", "room", rm.ID, "user", s.u.UserID(), "conn", s.u.ID, "evicted", evicted)

	if evicted || rm.Presence.Present(s.u.UserID()) {
		return
	}
	s.gw.announce(rm, s.u, protocol.Presence{
		RoomID: rm.ID,
		UserID: s.u.UserID(),
		Name:   s.u.Identity.Name,
		Status: protocol.PresenceLeft,
	})
}
