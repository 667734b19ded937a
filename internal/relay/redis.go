package relay

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBus: Bus over Redis pub/sub
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(addr string) *RedisBus {
	return &RedisBus{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Ping: fails when Redis is unreachable
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Publish(ctx context.Context, channel string, msg []byte) error {
	return b.client.Publish(ctx, channel, msg).Err()
}

// Subscribe: the returned channel closes when ctx is done
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan []byte, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
