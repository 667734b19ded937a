package client

import (
	"time"

	"collabboard/internal/element"
	"collabboard/internal/protocol"

	"github.com/google/uuid"
)

// Sender: outbound side of the connection. Send must not block.
type Sender interface {
	Send(ev protocol.Event) error
}

// NewElementID: random id, the server never assigns one
func NewElementID() string {
	return uuid.NewString()
}

// Reconciler merges optimistic local edits with events from the room
type Reconciler struct {
	roomID string
	userID string
	mirror *Mirror
	sender Sender
	now    func() time.Time
}

func NewReconciler(roomID, userID string, mirror *Mirror, sender Sender) *Reconciler {
	return &Reconciler{
		roomID: roomID,
		userID: userID,
		mirror: mirror,
		sender: sender,
		now:    time.Now,
	}
}

func (r *Reconciler) Mirror() *Mirror {
	return r.mirror
}

func (r *Reconciler) RoomID() string {
	return r.roomID
}

// Create: assigns an id if missing, stamps the element and applies it locally
func (r *Reconciler) Create(el element.Element) (element.Element, error) {
	if el.ID == "" {
		el.ID = NewElementID()
	}
	return el, r.Update(el)
}

// Update: full replacement of el, applied locally then sent
func (r *Reconciler) Update(el element.Element) error {
	el.UserID = r.userID
	el.Timestamp = r.now().UnixMilli() // informational only
	return r.ApplyLocal(protocol.DrawingUpdate{RoomID: r.roomID, Element: el})
}

// Delete: removes locally then sends
func (r *Reconciler) Delete(id string) error {
	return r.ApplyLocal(protocol.DrawingDelete{RoomID: r.roomID, ElementID: id})
}

// ApplyLocal: optimistic apply, then fire and forget
func (r *Reconciler) ApplyLocal(ev protocol.Event) error {
	switch ev := ev.(type) {
	case protocol.DrawingUpdate:
		r.mirror.Upsert(ev.Element)
	case protocol.DrawingDelete:
		r.mirror.Delete(ev.ElementID)
	}
	if r.sender == nil {
		return nil
	}
	return r.sender.Send(ev)
}

// ApplyRemote: applies an inbound event, reports whether the mirror changed.
// A remote update wins even over an element the local user is dragging.
func (r *Reconciler) ApplyRemote(ev protocol.Event) bool {
	if ev.Room() != r.roomID {
		return false
	}

	switch ev := ev.(type) {
	case protocol.RoomState:
		r.mirror.Replace(ev.Elements)
		return true
	case protocol.DrawingUpdate:
		if ev.Element.Degenerate() {
			return false
		}
		r.mirror.Upsert(ev.Element)
		return true
	case protocol.DrawingDelete:
		return r.mirror.Delete(ev.ElementID)
	}
	return false
}
