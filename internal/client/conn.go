package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"collabboard/internal/errs"
	"collabboard/internal/protocol"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	sendQueueSize  = 256
	writeWait      = 10 * time.Second
	reconnectDelay = time.Second
)

// Conn: persistent connection to one room. Sends are fire and forget; inbound
// events are handed to the PaintScheduler instead of being applied directly.
type Conn struct {
	endpoint  string
	token     string
	roomID    string
	dialer    *websocket.Dialer
	scheduler *PaintScheduler
	logger    *log.Logger
	delay     time.Duration

	send      chan []byte
	connected atomic.Bool
	onStatus  func(connected bool)
	statusMu  sync.Mutex
}

type ConnOption func(*Conn)

// WithStatus: called on every connected/disconnected transition
func WithStatus(fn func(connected bool)) ConnOption {
	return func(c *Conn) { c.onStatus = fn }
}

func WithReconnectDelay(d time.Duration) ConnOption {
	return func(c *Conn) { c.delay = d }
}

func WithConnLogger(l *log.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

func NewConn(endpoint, token, roomID string, scheduler *PaintScheduler, opts ...ConnOption) *Conn {
	c := &Conn{
		endpoint:  endpoint,
		token:     token,
		roomID:    roomID,
		dialer:    websocket.DefaultDialer,
		scheduler: scheduler,
		delay:     reconnectDelay,
		send:      make(chan []byte, sendQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Connected: binary indicator for the UI
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Send: queues ev and returns immediately. Nothing is queued while disconnected;
// the room_state that follows the next join supersedes any edit made offline.
func (c *Conn) Send(ev protocol.Event) error {
	if !c.connected.Load() {
		return errs.ErrDisconnected
	}
	msg, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errs.ErrQueueFull
	}
}

// Run: connects and reconnects until ctx is done. Each connection starts with
// join_room so the server replies with a fresh room_state.
func (c *Conn) Run(ctx context.Context) error {
	t := time.NewTicker(c.delay)
	defer t.Stop()

	for {
		if err := c.connectOnce(ctx); err != nil {
			c.logger.Warn("Connection lost", "room", c.roomID, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Conn) dialURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Conn) connectOnce(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	// Anything still queued belongs to the previous connection
	c.dropQueued()

	join, err := protocol.Encode(protocol.JoinRoom{RoomID: c.roomID})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return fmt.Errorf("send join_room: %w", err)
	}

	defer c.dropQueued()
	defer c.setStatus(false)

	done := make(chan struct{})
	defer close(done)
	go c.writeLoop(conn, done)

	// Unblocks ReadMessage on cancel
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := protocol.Decode(msg)
		if err != nil {
			c.logger.Debug("Dropping inbound message", "err", err)
			continue
		}
		// Connected only once the server has sent the base snapshot
		if st, ok := ev.(protocol.RoomState); ok && st.RoomID == c.roomID {
			c.setStatus(true)
		}
		c.scheduler.Push(ev)
	}
}

func (c *Conn) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// dropQueued: discards unsent messages, returns how many
func (c *Conn) dropQueued() int {
	n := 0
	for {
		select {
		case <-c.send:
			n++
		default:
			if n > 0 {
				c.logger.Debug("Dropped unsent messages", "room", c.roomID, "count", n)
			}
			return n
		}
	}
}

func (c *Conn) setStatus(up bool) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	if c.connected.Swap(up) == up {
		return
	}
	if c.onStatus != nil {
		c.onStatus(up)
	}
}
