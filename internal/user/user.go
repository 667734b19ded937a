package user

import (
	"sync"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/errs"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// SendQueueSize: outbound messages buffered per connection before it is treated as stalled
	SendQueueSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // Send pings at 90% of pong deadline
)

// User: one connected participant. ID is per connection; Identity.ID is the stable user id.
type User struct {
	ID         string
	Identity   auth.Identity
	Session    *UserSession
	Connection *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// New: wraps a connection. conn may be nil for users that are only fed through Outbox.
func New(identity auth.Identity, session *UserSession, conn *websocket.Conn) *User {
	return &User{
		ID:         GenerateUUID(),
		Identity:   identity,
		Session:    session,
		Connection: conn,
		send:       make(chan []byte, SendQueueSize),
		done:       make(chan struct{}),
	}
}

// GenerateUUID: random id for connections
func GenerateUUID() string {
	return uuid.NewString()
}

// UserID: stable identity id used for presence and attribution
func (u *User) UserID() string {
	return u.Identity.ID
}

// Send: queues msg for delivery, never blocks on the network
func (u *User) Send(msg []byte) error {
	select {
	case <-u.done:
		return errs.ErrClosed
	default:
	}

	select {
	case u.send <- msg:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// Outbox: queued messages, drained by WritePump
func (u *User) Outbox() <-chan []byte {
	return u.send
}

// Done: closed once the user is closed
func (u *User) Done() <-chan struct{} {
	return u.done
}

// Close: stops the write pump and closes the connection. Safe to call more than once.
func (u *User) Close() {
	u.closeOnce.Do(func() {
		close(u.done)
		if u.Connection != nil {
			u.Connection.Close()
		}
	})
}

// WriteMessage: direct, serialized write. Used before the pump starts.
func (u *User) WriteMessage(messageType int, data []byte) error {
	if u.Connection == nil {
		return errs.ErrClosed
	}
	u.writeMu.Lock()
	defer u.writeMu.Unlock()

	u.Connection.SetWriteDeadline(time.Now().Add(writeWait))
	return u.Connection.WriteMessage(messageType, data)
}

// CloseWithReason: sends a close frame before tearing the connection down
func (u *User) CloseWithReason(code int, reason string) {
	if u.Connection != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		u.writeMu.Lock()
		u.Connection.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		u.writeMu.Unlock()
	}
	u.Close()
}

// KeepAlive: read deadline extended on every pong
func (u *User) KeepAlive() {
	u.Connection.SetReadDeadline(time.Now().Add(pongWait))
	u.Connection.SetPongHandler(func(string) error {
		u.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// WritePump: drains the outbox and pings until closed or a write fails
func (u *User) WritePump() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	defer u.Close()

	for {
		select {
		case msg := <-u.send:
			if err := u.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := u.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection dead
			}
		case <-u.done:
			return
		}
	}
}
