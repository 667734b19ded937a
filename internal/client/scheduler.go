package client

import (
	"sync"

	"collabboard/internal/protocol"
)

// PaintScheduler: inbound events wait here until the UI's next frame
type PaintScheduler struct {
	pending []protocol.Event
	ready   chan struct{}
	mu      sync.Mutex
}

func NewPaintScheduler() *PaintScheduler {
	return &PaintScheduler{ready: make(chan struct{}, 1)}
}

// Push: called from the network goroutine, never blocks
func (p *PaintScheduler) Push(ev protocol.Event) {
	p.mu.Lock()
	p.pending = append(p.pending, ev)
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// Ready: signalled when events are pending
func (p *PaintScheduler) Ready() <-chan struct{} {
	return p.ready
}

// Flush: applies everything pending in arrival order, returns how many applied changed state
func (p *PaintScheduler) Flush(apply func(protocol.Event) bool) int {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	changed := 0
	for _, ev := range batch {
		if apply(ev) {
			changed++
		}
	}
	return changed
}
