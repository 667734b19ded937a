package relay

import (
	"context"
	"sync"
)

// MemoryBus: in-process Bus, for single binary clusters and tests
type MemoryBus struct {
	subs map[string][]chan []byte
	mu   sync.Mutex
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan []byte)}
}

// Publish: never blocks; a subscriber that is not keeping up misses the message
func (b *MemoryBus) Publish(_ context.Context, channel string, msg []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 256)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
