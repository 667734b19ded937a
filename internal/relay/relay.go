package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultChannel: pub/sub channel shared by every node
const DefaultChannel = "collabboard:events"

// Envelope: what travels between nodes. Payload is the wire event exactly as broadcast locally.
type Envelope struct {
	Node    string          `json:"node"`
	RoomID  string          `json:"room_id"`
	Payload json.RawMessage `json:"payload"`
}

// Bus: a broadcast channel between server nodes
type Bus interface {
	Publish(ctx context.Context, channel string, msg []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// ApplyFunc: applies an event accepted by another node to local rooms
type ApplyFunc func(ctx context.Context, roomID string, msg []byte) error

// Relay forwards applied events to other nodes and feeds theirs back in
type Relay struct {
	bus     Bus
	channel string
	node    string
	logger  *log.Logger
}

func New(bus Bus, channel string, logger *log.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Relay{
		bus:     bus,
		channel: channel,
		node:    uuid.NewString(),
		logger:  logger,
	}
}

// Node: id of this server node
func (r *Relay) Node() string {
	return r.node
}

// Publish: sends msg for roomID to every other node
func (r *Relay) Publish(ctx context.Context, roomID string, msg []byte) error {
	data, err := json.Marshal(Envelope{Node: r.node, RoomID: roomID, Payload: msg})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.bus.Publish(ctx, r.channel, data)
}

// Run: delivers events from other nodes to apply until ctx is done.
// Our own publications come back on the channel and are skipped.
func (r *Relay) Run(ctx context.Context, apply ApplyFunc) error {
	ch, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("Relay subscribed", "channel", r.channel, "node", r.node)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				r.logger.Warn("Error unmarshalling relay message", "err", err)
				continue
			}
			if env.Node == r.node {
				continue
			}
			if err := apply(ctx, env.RoomID, env.Payload); err != nil {
				r.logger.Warn("Relay event not applied", "room", env.RoomID, "from", env.Node, "err", err)
			}
		}
	}
}
