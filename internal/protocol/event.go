package protocol

import (
	"encoding/json"

	"collabboard/internal/element"
)

// Kind: value of the envelope "type" field
type Kind string

const (
	KindJoinRoom      Kind = "join_room"
	KindLeaveRoom     Kind = "leave_room"
	KindDrawingUpdate Kind = "drawing_update"
	KindDrawingDelete Kind = "drawing_delete"
	KindCursorMove    Kind = "cursor_move"
	KindChat          Kind = "chat"
	KindRoomState     Kind = "room_state"

	// Server originated
	KindAuthenticated Kind = "authenticated"
	KindPresence      Kind = "presence"
	KindError         Kind = "error"
)

// Event is one decoded wire message. The set of implementations is closed.
type Event interface {
	Kind() Kind
	Room() string
	event()
}

// FromClient: kinds a participant is allowed to send
func FromClient(k Kind) bool {
	switch k {
	case KindJoinRoom, KindLeaveRoom, KindDrawingUpdate, KindDrawingDelete, KindCursorMove, KindChat:
		return true
	}
	return false
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// DrawingUpdate covers both create and update; receivers upsert by element id.
type DrawingUpdate struct {
	RoomID  string          `json:"roomId"`
	UserID  string          `json:"userId,omitempty"`
	Element element.Element `json:"element"`
}

type DrawingDelete struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId,omitempty"`
	ElementID string `json:"elementId"`
}

type Cursor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID string  `json:"userId,omitempty"`
}

type CursorMove struct {
	RoomID string  `json:"roomId"`
	UserID string  `json:"userId,omitempty"`
	Cursor *Cursor `json:"cursor"`
	Color  string  `json:"color,omitempty"`
}

type Chat struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// RoomState is the only event carrying the full element collection.
type RoomState struct {
	RoomID   string            `json:"roomId"`
	Elements []element.Element `json:"elements"`
}

type Authenticated struct {
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Color  string `json:"color,omitempty"`
}

const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

type Presence struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Color  string `json:"color,omitempty"`
	Status string `json:"status"`
}

type Error struct {
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message"`
}

func (JoinRoom) Kind() Kind      { return KindJoinRoom }
func (LeaveRoom) Kind() Kind     { return KindLeaveRoom }
func (DrawingUpdate) Kind() Kind { return KindDrawingUpdate }
func (DrawingDelete) Kind() Kind { return KindDrawingDelete }
func (CursorMove) Kind() Kind    { return KindCursorMove }
func (Chat) Kind() Kind          { return KindChat }
func (RoomState) Kind() Kind     { return KindRoomState }
func (Authenticated) Kind() Kind { return KindAuthenticated }
func (Presence) Kind() Kind      { return KindPresence }
func (Error) Kind() Kind         { return KindError }

func (e JoinRoom) Room() string      { return e.RoomID }
func (e LeaveRoom) Room() string     { return e.RoomID }
func (e DrawingUpdate) Room() string { return e.RoomID }
func (e DrawingDelete) Room() string { return e.RoomID }
func (e CursorMove) Room() string    { return e.RoomID }
func (e Chat) Room() string          { return e.RoomID }
func (e RoomState) Room() string     { return e.RoomID }
func (e Authenticated) Room() string { return e.RoomID }
func (e Presence) Room() string      { return e.RoomID }
func (e Error) Room() string         { return e.RoomID }

func (JoinRoom) event()      {}
func (LeaveRoom) event()     {}
func (DrawingUpdate) event() {}
func (DrawingDelete) event() {}
func (CursorMove) event()    {}
func (Chat) event()          {}
func (RoomState) event()     {}
func (Authenticated) event() {}
func (Presence) event()      {}
func (Error) event()         {}

func (e JoinRoom) MarshalJSON() ([]byte, error) {
	type alias JoinRoom
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e LeaveRoom) MarshalJSON() ([]byte, error) {
	type alias LeaveRoom
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e DrawingUpdate) MarshalJSON() ([]byte, error) {
	type alias DrawingUpdate
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e DrawingDelete) MarshalJSON() ([]byte, error) {
	type alias DrawingDelete
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e CursorMove) MarshalJSON() ([]byte, error) {
	type alias CursorMove
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Chat) MarshalJSON() ([]byte, error) {
	type alias Chat
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e RoomState) MarshalJSON() ([]byte, error) {
	type alias RoomState
	if e.Elements == nil {
		e.Elements = []element.Element{}
	}
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Authenticated) MarshalJSON() ([]byte, error) {
	type alias Authenticated
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Presence) MarshalJSON() ([]byte, error) {
	type alias Presence
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}
