package handlers

import (
	"collabboard/internal/errs"
	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"
)

// ChatHandler: chat is never stored, only attributed and passed through
type ChatHandler struct{}

func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

// Handle: the connection's identity replaces whatever the client claimed
func (h *ChatHandler) Handle(rm *room.Room, u *user.User, ev protocol.Chat) ([]byte, error) {
	if u.Session != nil && !u.Session.ObjectRateLimiter.Allow() {
		return nil, errs.ErrRateLimited
	}

	out := rm.Presence.Chat(rm.ID, u.Identity, ev.Message)
	if out.Message == "" {
		return nil, nil
	}

	msg, err := protocol.Encode(out)
	if err != nil {
		return nil, err
	}
	if err := rm.Commit(u.ID, msg, nil); err != nil {
		return nil, err
	}
	return msg, nil
}
