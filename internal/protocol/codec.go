package protocol

import (
	"encoding/json"
	"fmt"

	"collabboard/internal/errs"
)

// MalformedEventError: payload could not be turned into an Event.
// errors.Is(err, errs.ErrMalformedEvent) holds for every instance.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", errs.ErrMalformedEvent, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", errs.ErrMalformedEvent, e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

func (e *MalformedEventError) Is(target error) bool {
	return target == errs.ErrMalformedEvent
}

func malformed(reason string, err error) error {
	return &MalformedEventError{Reason: reason, Err: err}
}

type envelope struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
}

// Decode: reads the envelope, then unmarshals into exactly one concrete event
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("unparseable payload", err)
	}
	if env.Type == "" {
		return nil, malformed("missing type", nil)
	}

	switch env.Type {
	case KindAuthenticated:
		return decodeAs[Authenticated](data)
	case KindError:
		return decodeAs[Error](data)
	}

	if env.RoomID == "" {
		return nil, malformed("missing roomId", nil)
	}

	switch env.Type {
	case KindJoinRoom:
		return decodeAs[JoinRoom](data)

	case KindLeaveRoom:
		return decodeAs[LeaveRoom](data)

	case KindDrawingUpdate:
		ev, err := decodeAs[DrawingUpdate](data)
		if err != nil {
			return nil, err
		}
		if ev.Element.ID == "" {
			return nil, malformed("missing element", nil)
		}
		return ev, nil

	case KindDrawingDelete:
		ev, err := decodeAs[DrawingDelete](data)
		if err != nil {
			return nil, err
		}
		if ev.ElementID == "" {
			return nil, malformed("missing elementId", nil)
		}
		return ev, nil

	case KindCursorMove:
		ev, err := decodeAs[CursorMove](data)
		if err != nil {
			return nil, err
		}
		if ev.Cursor == nil {
			return nil, malformed("missing cursor", nil)
		}
		return ev, nil

	case KindChat:
		ev, err := decodeAs[Chat](data)
		if err != nil {
			return nil, err
		}
		if ev.Message == "" {
			return nil, malformed("missing message", nil)
		}
		return ev, nil

	case KindRoomState:
		return decodeAs[RoomState](data)

	case KindPresence:
		return decodeAs[Presence](data)

	default:
		return nil, malformed(fmt.Sprintf("unknown type %q", env.Type), nil)
	}
}

func decodeAs[T Event](data []byte) (T, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, malformed(fmt.Sprintf("bad %s payload", ev.Kind()), err)
	}
	return ev, nil
}

// Encode: wire bytes for an event, "type" included
func Encode(ev Event) ([]byte, error) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	return msg, nil
}
