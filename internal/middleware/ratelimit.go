package middleware

import "time"

// ObjectCounter: anything that knows how many elements it holds (avoids import cycle with room)
type ObjectCounter interface {
	Len() int
}

// RateLimit: server-wide limits applied by the gateway and router
type RateLimit struct {
	MaxRoomSize    int
	MaxObjects     int
	MaxMessageSize int
	MaxRooms       int
	CursorInterval time.Duration // minimum gap between broadcast cursors of one user
}

func NewRateLimit(maxRoomSize, maxObjects, maxMessageSize, maxRooms int, cursorInterval time.Duration) *RateLimit {
	return &RateLimit{
		MaxRoomSize:    maxRoomSize,
		MaxObjects:     maxObjects,
		MaxMessageSize: maxMessageSize,
		MaxRooms:       maxRooms,
		CursorInterval: cursorInterval,
	}
}

// DefaultRateLimit: limits used when nothing is configured
func DefaultRateLimit() *RateLimit {
	return NewRateLimit(50, 5000, 1<<20, 1000, 33*time.Millisecond) // ~30fps cursors
}

// CanAddObject: checks if a room has space for more objects
func (rl *RateLimit) CanAddObject(counter ObjectCounter) bool {
	if rl == nil || rl.MaxObjects <= 0 {
		return true
	}
	return counter.Len() < rl.MaxObjects
}

// ValidateMessageSize: checks if a message is within the size limit
func (rl *RateLimit) ValidateMessageSize(msgSize int) bool {
	if rl == nil || rl.MaxMessageSize <= 0 {
		return true
	}
	return msgSize <= rl.MaxMessageSize
}

// CursorThrottled: whether a cursor at now comes too soon after the one at last
func (rl *RateLimit) CursorThrottled(last, now time.Time) bool {
	if rl == nil || last.IsZero() {
		return false
	}
	return now.Sub(last) < rl.CursorInterval
}
