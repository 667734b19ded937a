package handlers

import (
	"time"

	"collabboard/internal/errs"
	"collabboard/internal/middleware"
	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"
)

// CursorHandler handles cursor position updates
type CursorHandler struct {
	sessions SessionProvider
	limits   *middleware.RateLimit
	now      func() time.Time
}

func NewCursorHandler(sessions SessionProvider, limits *middleware.RateLimit) *CursorHandler {
	return &CursorHandler{
		sessions: sessions,
		limits:   limits,
		now:      time.Now,
	}
}

// Handle: records the latest cursor and fans it out with the user's room color.
// Cursors arriving faster than the configured interval are dropped silently.
func (h *CursorHandler) Handle(rm *room.Room, u *user.User, ev protocol.CursorMove) ([]byte, error) {
	if u.Session != nil && !u.Session.CursorRateLimiter.Allow() {
		return nil, errs.ErrRateLimited
	}

	now := h.now()
	if h.sessions != nil {
		last, _ := h.sessions.LastCursor(u.UserID())
		if h.limits.CursorThrottled(last, now) {
			return nil, nil
		}
		h.sessions.UpdateLastCursor(u.UserID(), now)
	}

	out := rm.Presence.SetCursor(rm.ID, u.UserID(), *ev.Cursor)
	msg, err := protocol.Encode(out)
	if err != nil {
		return nil, err
	}

	if err := rm.Commit(u.ID, msg, nil); err != nil {
		return nil, err
	}
	return msg, nil
}
