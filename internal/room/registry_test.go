package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/protocol"
	"collabboard/internal/user"
)

func newUser(id string) *user.User {
	return user.New(auth.Identity{ID: id, Name: id}, nil, nil)
}

// drain: every message queued to u so far, decoded
func drain(t *testing.T, u *user.User) []protocol.Event {
	t.Helper()
	var out []protocol.Event
	for {
		select {
		case msg := <-u.Outbox():
			ev, err := protocol.Decode(msg)
			if err != nil {
				t.Fatalf("queued message %s does not decode: %v", msg, err)
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func rect(id string, x, y float64) element.Element {
	return element.Element{ID: id, Type: element.Rectangle, X: x, Y: y, Width: 10, Height: 10, StrokeWidth: 2}
}

func upsert(rm *Room, sender *user.User, el element.Element) error {
	msg, err := protocol.Encode(protocol.DrawingUpdate{RoomID: rm.ID, UserID: sender.UserID(), Element: el})
	if err != nil {
		return err
	}
	return rm.Commit(sender.ID, msg, func(els *Elements) error {
		els.Upsert(el, sender.UserID(), time.Now())
		return nil
	})
}

func TestJoinAfterActivity(t *testing.T) {
	rg := NewRegistry()
	a := newUser("A")

	rm, snap, err := rg.Join("abc", a)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("first snapshot has %d elements, want 0", len(snap))
	}

	upsert(rm, a, rect("E1", 0, 0))
	upsert(rm, a, rect("E2", 5, 5))
	upsert(rm, a, rect("E1", 1, 1))

	b := newUser("B")
	_, snap, err = rg.Join("abc", b)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	events := drain(t, b)
	if len(events) != 1 {
		t.Fatalf("B received %d messages, want only room_state", len(events))
	}
	state, ok := events[0].(protocol.RoomState)
	if !ok {
		t.Fatalf("B received %T, want RoomState", events[0])
	}

	seen := map[string]int{}
	for _, el := range state.Elements {
		seen[el.ID]++
	}
	if len(seen) != 2 || seen["E1"] != 1 || seen["E2"] != 1 {
		t.Errorf("room_state ids = %v, want exactly E1 and E2", seen)
	}
	if len(snap) != 2 {
		t.Errorf("Join() snapshot has %d elements, want 2", len(snap))
	}

	// A must not be sent B's room_state
	for _, ev := range drain(t, a) {
		if ev.Kind() == protocol.KindRoomState && len(ev.(protocol.RoomState).Elements) == 2 {
			t.Error("room_state leaked to an existing participant")
		}
	}
}

func TestConcurrentCreatesAreAllKept(t *testing.T) {
	rg := NewRegistry()
	a, b := newUser("A"), newUser("B")
	rm, _, _ := rg.Join("abc", a)
	rg.Join("abc", b)

	const perUser = 100
	var wg sync.WaitGroup
	for _, u := range []*user.User{a, b} {
		wg.Add(1)
		go func(u *user.User) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				upsert(rm, u, rect(fmt.Sprintf("%s%d", u.UserID(), i), 0, 0))
			}
		}(u)
	}
	wg.Wait()

	if got := rm.ObjectCount(); got != 2*perUser {
		t.Errorf("ObjectCount() = %d, want %d", got, 2*perUser)
	}
	if _, ok := rm.GetObject("A0"); !ok {
		t.Error("A0 missing")
	}
	if _, ok := rm.GetObject("B99"); !ok {
		t.Error("B99 missing")
	}
}

func TestUpsertReplacesAllFields(t *testing.T) {
	els := newElements()
	now := time.Now()

	els.Upsert(element.Element{ID: "1", Type: element.Text, X: 0, Y: 0, Text: "old", StrokeColor: "#111"}, "u", now)
	ch := els.Upsert(element.Element{ID: "1", Type: element.Rectangle, X: 50, Y: 50}, "u", now)

	if ch.Created {
		t.Error("second upsert reported as create")
	}
	got, _ := els.Get("1")
	if got.X != 50 || got.Y != 50 {
		t.Errorf("position = (%v,%v), want (50,50)", got.X, got.Y)
	}
	if got.Text != "" || got.StrokeColor != "" || got.Type != element.Rectangle {
		t.Errorf("residual fields after full replacement: %+v", got)
	}
	if els.Len() != 1 {
		t.Errorf("Len() = %d, want 1", els.Len())
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	els := newElements()
	els.Upsert(rect("a", 0, 0), "u", time.Now())
	before := els.Snapshot()

	if els.Delete("missing") {
		t.Error("Delete(missing) reported true")
	}
	after := els.Snapshot()
	if len(before) != len(after) || before[0].ID != after[0].ID {
		t.Errorf("state changed: %v -> %v", before, after)
	}
}

func TestLastWriteWinsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}

	for round := 0; round < 200; round++ {
		els := newElements()
		want := map[string]float64{}

		for step := 0; step < 30; step++ {
			id := ids[rng.Intn(len(ids))]
			if rng.Intn(3) == 0 {
				els.Delete(id)
				delete(want, id)
				continue
			}
			x := float64(rng.Intn(1000))
			els.Upsert(rect(id, x, 0), "u", time.Now())
			want[id] = x
		}

		snap := els.Snapshot()
		if len(snap) != len(want) {
			t.Fatalf("round %d: %d elements, want %d", round, len(snap), len(want))
		}
		seen := map[string]bool{}
		for _, el := range snap {
			if seen[el.ID] {
				t.Fatalf("round %d: duplicate id %s", round, el.ID)
			}
			seen[el.ID] = true
			if el.X != want[el.ID] {
				t.Fatalf("round %d: %s.X = %v, want %v", round, el.ID, el.X, want[el.ID])
			}
		}
	}
}

func TestInsertionOrderSurvivesDelete(t *testing.T) {
	els := newElements()
	for _, id := range []string{"a", "b", "c", "d"} {
		els.Upsert(rect(id, 0, 0), "u", time.Now())
	}
	els.Delete("b")
	els.Upsert(rect("c", 9, 9), "u", time.Now())

	var order []string
	for _, el := range els.Snapshot() {
		order = append(order, el.ID)
	}
	if fmt.Sprint(order) != "[a c d]" {
		t.Errorf("order = %v, want [a c d]", order)
	}
	if got, _ := els.Get("d"); got.ID != "d" {
		t.Error("index broken after delete")
	}
}

func TestVersionAndConcurrentDetection(t *testing.T) {
	els := newElements()
	now := time.Now()

	els.Upsert(rect("x", 0, 0), "alice", now)
	ch := els.Upsert(rect("x", 1, 1), "bob", now.Add(100*time.Millisecond))
	if !ch.Concurrent || ch.PrevEditor != "alice" {
		t.Errorf("Change = %+v, want concurrent overwrite of alice", ch)
	}
	if ch.Version != 2 {
		t.Errorf("Version = %d, want 2", ch.Version)
	}

	ch = els.Upsert(rect("x", 2, 2), "alice", now.Add(2*time.Second))
	if ch.Concurrent {
		t.Error("old write should not count as concurrent")
	}

	els.Delete("x")
	if ch := els.Upsert(rect("x", 0, 0), "alice", now); !ch.Created || ch.Version != 1 {
		t.Errorf("recreate Change = %+v, want fresh version 1", ch)
	}
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	rg := NewRegistry()
	a := newUser("A")
	rm, _, _ := rg.Join("abc", a)
	upsert(rm, a, element.Element{ID: "p", Type: element.Pencil, Points: []element.Point{{X: 1, Y: 1}}})

	snap := rm.Snapshot()
	snap[0].Points[0].X = 500

	got, _ := rm.GetObject("p")
	if got.Points[0].X != 1 {
		t.Error("mutating a snapshot changed room state")
	}
}

func TestCommitExcludesSender(t *testing.T) {
	rg := NewRegistry()
	a, b, c := newUser("A"), newUser("B"), newUser("C")
	rm, _, _ := rg.Join("abc", a)
	rg.Join("abc", b)
	rg.Join("abc", c)
	drain(t, a)
	drain(t, b)
	drain(t, c)

	upsert(rm, a, rect("E", 0, 0))

	if n := len(drain(t, a)); n != 0 {
		t.Errorf("sender received %d messages, want 0", n)
	}
	for _, u := range []*user.User{b, c} {
		events := drain(t, u)
		if len(events) != 1 || events[0].Kind() != protocol.KindDrawingUpdate {
			t.Errorf("%s received %v, want one drawing_update", u.UserID(), events)
		}
	}
}

func TestCommitMutateErrorSkipsBroadcast(t *testing.T) {
	rg := NewRegistry()
	a, b := newUser("A"), newUser("B")
	rm, _, _ := rg.Join("abc", a)
	rg.Join("abc", b)
	drain(t, b)

	err := rm.Commit(a.ID, []byte(`{}`), func(*Elements) error { return errs.ErrRoomAtCapacity })
	if !errors.Is(err, errs.ErrRoomAtCapacity) {
		t.Errorf("Commit() error = %v", err)
	}
	if n := len(drain(t, b)); n != 0 {
		t.Errorf("peer received %d messages after failed commit", n)
	}
}

func TestLeaveEvictsEmptyRoom(t *testing.T) {
	var created, evicted []string
	rg := NewRegistry(
		WithOnCreate(func(id string) { created = append(created, id) }),
		WithOnEvict(func(id string) { evicted = append(evicted, id) }),
	)
	a, b := newUser("A"), newUser("B")
	rg.Join("abc", a)
	rg.Join("abc", b)

	if rg.Leave("abc", a) {
		t.Error("room evicted while B is still present")
	}
	if !rg.Leave("abc", b) {
		t.Error("room should be evicted after last leave")
	}
	if _, ok := rg.Get("abc"); ok {
		t.Error("Get() found evicted room")
	}
	if fmt.Sprint(created) != "[abc]" || fmt.Sprint(evicted) != "[abc]" {
		t.Errorf("hooks created=%v evicted=%v", created, evicted)
	}

	// Rejoin starts from an empty room
	rm, snap, _ := rg.Join("abc", newUser("C"))
	if len(snap) != 0 || rm.ObjectCount() != 0 {
		t.Error("evicted room state leaked into a new room")
	}
}

func TestLimits(t *testing.T) {
	rg := NewRegistry(WithMaxRooms(1), WithMaxRoomSize(1))

	if _, _, err := rg.Join("one", newUser("A")); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, _, err := rg.Join("one", newUser("B")); !errors.Is(err, errs.ErrRoomFull) {
		t.Errorf("Join(full room) error = %v, want ErrRoomFull", err)
	}
	if _, _, err := rg.Join("two", newUser("C")); !errors.Is(err, errs.ErrServerFull) {
		t.Errorf("Join(new room) error = %v, want ErrServerFull", err)
	}
	if _, _, err := rg.Join("", newUser("D")); !errors.Is(err, errs.ErrRoomCodeMissing) {
		t.Errorf("Join(\"\") error = %v, want ErrRoomCodeMissing", err)
	}
	if rg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", rg.Count())
	}
}

func TestPresenceKeptForSecondConnection(t *testing.T) {
	rg := NewRegistry()
	tab1 := user.New(auth.Identity{ID: "same"}, nil, nil)
	tab2 := user.New(auth.Identity{ID: "same"}, nil, nil)
	other := newUser("other")

	rm, _, _ := rg.Join("abc", tab1)
	rg.Join("abc", tab2)
	rg.Join("abc", other)
	rm.Presence.SetCursor("abc", "same", protocol.Cursor{X: 1, Y: 1})

	rg.Leave("abc", tab1)
	if _, ok := rm.Presence.Cursor("same"); !ok {
		t.Error("cursor dropped while the user still has a connection")
	}
	rg.Leave("abc", tab2)
	if _, ok := rm.Presence.Cursor("same"); ok {
		t.Error("cursor kept after the user's last connection left")
	}
}

func TestCleanupEvictsIdleEmptyRooms(t *testing.T) {
	rg := NewRegistry()
	idle, _ := rg.GetOrCreate("idle")
	idle.LastActive = time.Now().Add(-time.Hour)
	rg.Join("busy", newUser("A"))

	rg.Cleanup(time.Minute)

	if _, ok := rg.Get("idle"); ok {
		t.Error("idle empty room survived Cleanup")
	}
	if _, ok := rg.Get("busy"); !ok {
		t.Error("occupied room evicted by Cleanup")
	}
	if got := rg.IDs(); fmt.Sprint(got) != "[busy]" {
		t.Errorf("IDs() = %v", got)
	}
}

func TestFullQueueDisconnects(t *testing.T) {
	rg := NewRegistry()
	a, slow := newUser("A"), newUser("slow")
	rm, _, _ := rg.Join("abc", a)
	rg.Join("abc", slow)

	for i := 0; i <= user.SendQueueSize; i++ {
		upsert(rm, a, rect(fmt.Sprintf("e%d", i), 0, 0))
	}

	select {
	case <-slow.Done():
	default:
		t.Error("stalled participant should be closed")
	}
	if rm.ObjectCount() != user.SendQueueSize+1 {
		t.Errorf("ObjectCount() = %d, state must not depend on peers", rm.ObjectCount())
	}
}
