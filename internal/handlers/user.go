package handlers

import (
	"collabboard/internal/protocol"
)

// UserHandler: room membership requests
type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// HandleJoin: attaching to the current room again is a no-op
func (h *UserHandler) HandleJoin(s Session, ev protocol.JoinRoom) error {
	return s.AttachToRoom(ev.RoomID)
}

// HandleLeave: only leaves when the request names the attached room
func (h *UserHandler) HandleLeave(s Session, ev protocol.LeaveRoom) error {
	rm := s.Room()
	if rm == nil || rm.ID != ev.RoomID {
		return nil
	}
	s.Detach()
	return nil
}
