package handlers

import (
	"context"
	"time"

	"collabboard/internal/room"
	"collabboard/internal/user"
)

// Session: the gateway side of one authenticated connection
type Session interface {
	User() *user.User
	// Room: attached room, nil when detached
	Room() *room.Room
	AttachToRoom(roomID string) error
	Detach()
}

// SessionProvider: per-identity cursor throttle state
type SessionProvider interface {
	LastCursor(userID string) (time.Time, bool)
	UpdateLastCursor(userID string, t time.Time)
}

// Publisher: forwards applied events to other server nodes
type Publisher interface {
	Publish(ctx context.Context, roomID string, msg []byte) error
}

// RoomLookup: rooms that exist on this node
type RoomLookup interface {
	Get(roomID string) (*room.Room, bool)
}
