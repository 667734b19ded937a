package room

import (
	"fmt"

	"collabboard/internal/element"
	"collabboard/internal/protocol"
	"collabboard/internal/user"
)

// syncNewUser: queues the room_state snapshot to a newly joined user only
func syncNewUser(roomID string, snapshot []element.Element, u *user.User) error {
	msg, err := protocol.Encode(protocol.RoomState{RoomID: roomID, Elements: snapshot})
	if err != nil {
		return fmt.Errorf("failed to marshal room_state: %w", err)
	}

	if err := u.Send(msg); err != nil {
		return fmt.Errorf("failed to send room_state: %w", err)
	}
	return nil
}
