package handlers

import (
	"fmt"
	"time"

	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/metrics"
	"collabboard/internal/middleware"
	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"

	"github.com/charmbracelet/log"
)

// ObjectHandler: handles drawing_update and drawing_delete
type ObjectHandler struct {
	validator *element.Validator
	limits    *middleware.RateLimit
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewObjectHandler(validator *element.Validator, limits *middleware.RateLimit, logger *log.Logger, m *metrics.Metrics) *ObjectHandler {
	return &ObjectHandler{
		validator: validator,
		limits:    limits,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// HandleUpdate: validates, upserts and fans the update out. Returns the broadcast bytes,
// or nil when the event was dropped without error.
func (h *ObjectHandler) HandleUpdate(rm *room.Room, u *user.User, ev protocol.DrawingUpdate) ([]byte, error) {
	if !allowObject(u) {
		return nil, errs.ErrRateLimited
	}
	if ev.Element.Degenerate() {
		return nil, nil
	}

	el := ev.Element
	if err := h.validator.Validate(el); err != nil {
		return nil, &protocol.MalformedEventError{Reason: "invalid element", Err: err}
	}
	if el.UserID == "" {
		el.UserID = u.UserID()
	}

	ev.UserID = u.UserID()
	ev.Element = el
	msg, err := protocol.Encode(ev)
	if err != nil {
		return nil, err
	}

	var change room.Change
	err = rm.Commit(u.ID, msg, func(els *room.Elements) error {
		if !els.Has(el.ID) && !h.limits.CanAddObject(els) {
			return errs.ErrRoomAtCapacity
		}
		change = els.Upsert(el, u.UserID(), h.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", el.ID, err)
	}

	if change.Concurrent {
		h.metrics.ConcurrentEdit()
		if h.logger != nil {
			h.logger.Debug("Concurrent edit", "room", rm.ID, "element", el.ID, "version", change.Version, "overwrote", change.PrevEditor, "by", u.UserID())
		}
	}
	return msg, nil
}

// HandleDelete: removes by id and fans the delete out. Deleting an absent id changes nothing.
func (h *ObjectHandler) HandleDelete(rm *room.Room, u *user.User, ev protocol.DrawingDelete) ([]byte, error) {
	if !allowObject(u) {
		return nil, errs.ErrRateLimited
	}

	// Ids are opaque; the delete must name exactly what the upsert stored
	ev.UserID = u.UserID()
	msg, err := protocol.Encode(ev)
	if err != nil {
		return nil, err
	}

	err = rm.Commit(u.ID, msg, func(els *room.Elements) error {
		els.Delete(ev.ElementID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", ev.ElementID, err)
	}
	return msg, nil
}

func allowObject(u *user.User) bool {
	return u.Session == nil || u.Session.ObjectRateLimiter.Allow()
}
