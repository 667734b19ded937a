package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type applied struct {
	mu    sync.Mutex
	rooms []string
	msgs  []string
}

func (a *applied) apply(_ context.Context, roomID string, msg []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rooms = append(a.rooms, roomID)
	a.msgs = append(a.msgs, string(msg))
	return nil
}

func (a *applied) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

func TestRelayBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus()
	nodeA, nodeB := New(bus, "", nil), New(bus, "", nil)
	if nodeA.Node() == nodeB.Node() {
		t.Fatal("node ids must differ")
	}

	var gotA, gotB applied
	go nodeA.Run(ctx, gotA.apply)
	go nodeB.Run(ctx, gotB.apply)
	waitSubscribers(t, bus, 2)

	event := `{"type":"drawing_delete","roomId":"abc","elementId":"e1"}`
	if err := nodeA.Publish(ctx, "abc", []byte(event)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for gotB.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if gotB.count() != 1 {
		t.Fatalf("node B applied %d events, want 1", gotB.count())
	}
	if gotB.rooms[0] != "abc" || !jsonEqual(gotB.msgs[0], event) {
		t.Errorf("node B applied %s %s", gotB.rooms[0], gotB.msgs[0])
	}

	time.Sleep(20 * time.Millisecond)
	if gotA.count() != 0 {
		t.Error("a node must skip its own publications")
	}
}

func TestRunSkipsGarbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus()
	node := New(bus, "test", nil)
	var got applied
	go node.Run(ctx, got.apply)
	waitSubscribers(t, bus, 1)

	bus.Publish(ctx, "test", []byte("not json"))
	other := New(bus, "test", nil)
	other.Publish(ctx, "room", []byte(`{"type":"chat","roomId":"room","message":"hi"}`))

	deadline := time.Now().Add(2 * time.Second)
	for got.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got.count() != 1 {
		t.Errorf("applied %d events, want 1", got.count())
	}
}

func TestMemoryBusUnsubscribesOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := bus.Subscribe(ctx, "c")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should close after cancel")
	}
	if n := subscribers(bus, "c"); n != 0 {
		t.Errorf("%d subscribers left, want 0", n)
	}
}

func subscribers(b *MemoryBus, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

func waitSubscribers(t *testing.T, b *MemoryBus, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		total := 0
		b.mu.Lock()
		for _, subs := range b.subs {
			total += len(subs)
		}
		b.mu.Unlock()
		if total >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers", n)
}

func jsonEqual(a, b string) bool {
	var x, y any
	if json.Unmarshal([]byte(a), &x) != nil || json.Unmarshal([]byte(b), &y) != nil {
		return false
	}
	xb, _ := json.Marshal(x)
	yb, _ := json.Marshal(y)
	return string(xb) == string(yb)
}
