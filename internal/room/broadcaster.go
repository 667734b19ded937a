package room

import (
	"collabboard/internal/metrics"
	"collabboard/internal/user"

	"github.com/charmbracelet/log"
)

// RoomConnections: minimum interface for broadcasting
type RoomConnections interface {
	GetConnections() map[string]*user.User
}

// Broadcaster: fans messages out to room users without waiting on any of them
type Broadcaster struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(logger *log.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{logger: logger, metrics: m}
}

// Broadcast: sends msg to every user in the room except senderID
func (b *Broadcaster) Broadcast(rm RoomConnections, msg []byte, senderID string) {
	b.fanOut(rm.GetConnections(), msg, senderID)
}

// Unicast: sends msg to a single user
func (b *Broadcaster) Unicast(u *user.User, msg []byte) {
	b.deliver(u, msg)
}

// fanOut: O(n) non-blocking enqueues. A user whose queue is full is closed;
// its read loop then runs the normal leave path.
func (b *Broadcaster) fanOut(conns map[string]*user.User, msg []byte, senderID string) {
	for id, u := range conns {
		if id == senderID {
			continue
		}
		b.deliver(u, msg)
	}
}

func (b *Broadcaster) deliver(u *user.User, msg []byte) {
	if err := u.Send(msg); err != nil {
		if b.logger != nil {
			b.logger.Warn("Broadcast failed", "conn", u.ID, "user", u.UserID(), "err", err)
		}
		b.metrics.Dropped()
		u.Close()
		return
	}
	b.metrics.Sent(1)
}
