package errs

type Error string

func (e Error) Error() string { return string(e) }

const (
	// Gateway authentication
	ErrUnauthenticated   = Error("unauthenticated")
	ErrTokenExpired      = Error("token expired")
	ErrInvalidCredential = Error("invalid credential")

	// Inbound events
	ErrMalformedEvent = Error("malformed event")
	ErrNotInRoom      = Error("session is not attached to a room")
	ErrRateLimited    = Error("rate limit exceeded")
	ErrTooLarge       = Error("message too large")

	// Rooms
	ErrRoomCodeMissing = Error("room code missing")
	ErrRoomFull        = Error("room is full")
	ErrServerFull      = Error("server at maximum room capacity")
	ErrRoomAtCapacity  = Error("room at maximum object capacity")
	ErrRoomNotFound    = Error("room not found")
	ErrSlugTaken       = Error("room slug already taken")
	ErrRoomNameMissing = Error("room name missing")

	// Outbound delivery
	ErrQueueFull    = Error("send queue full")
	ErrClosed       = Error("connection closed")
	ErrDisconnected = Error("not connected")
)
