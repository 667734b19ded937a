package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"collabboard/internal/auth"
	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/middleware"
	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"
)

type fakeSession struct {
	u  *user.User
	rg *room.Registry
	rm *room.Room
}

func (f *fakeSession) User() *user.User { return f.u }
func (f *fakeSession) Room() *room.Room { return f.rm }

func (f *fakeSession) AttachToRoom(roomID string) error {
	if f.rm != nil && f.rm.ID == roomID {
		return nil
	}
	f.Detach()
	rm, _, err := f.rg.Join(roomID, f.u)
	if err != nil {
		return err
	}
	f.rm = rm
	return nil
}

func (f *fakeSession) Detach() {
	if f.rm != nil {
		f.rg.Leave(f.rm.ID, f.u)
		f.rm = nil
	}
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []string
}

func (p *fakePublisher) Publish(_ context.Context, roomID string, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, roomID+" "+string(msg))
	return nil
}

type fixture struct {
	rg       *room.Registry
	router   *MessageRouter
	pub      *fakePublisher
	sessions *user.SessionManager
}

func newFixture(limits *middleware.RateLimit) *fixture {
	rg := room.NewRegistry()
	pub := &fakePublisher{}
	sessions := user.NewSessionManager(user.DefaultLimits())
	return &fixture{
		rg:       rg,
		pub:      pub,
		sessions: sessions,
		router:   NewMessageRouter(rg, element.NewValidator(), limits, sessions, WithPublisher(pub)),
	}
}

// join: attached session with its join traffic already drained
func (fx *fixture) join(t *testing.T, userID, roomID string) *fakeSession {
	t.Helper()
	u := user.New(auth.Identity{ID: userID, Name: userID + "-name"}, nil, nil)
	fx.sessions.Acquire(userID)
	s := &fakeSession{u: u, rg: fx.rg}
	if err := fx.router.Route(context.Background(), s, []byte(`{"type":"join_room","roomId":"`+roomID+`"}`)); err != nil {
		t.Fatalf("join_room error = %v", err)
	}
	drain(s.u)
	return s
}

func drain(u *user.User) []protocol.Event {
	var out []protocol.Event
	for {
		select {
		case msg := <-u.Outbox():
			ev, err := protocol.Decode(msg)
			if err == nil {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

const rectUpdate = `{"type":"drawing_update","roomId":"abc","userId":"spoofed","element":{"id":"r1","type":"rectangle","x":0,"y":0,"width":10,"height":10,"strokeColor":"#000","strokeWidth":2,"fillColor":"transparent"}}`

func TestRouteUpdateFansOutToOthers(t *testing.T) {
	fx := newFixture(middleware.DefaultRateLimit())
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")
	drain(a.u)

	if err := fx.router.Route(context.Background(), a, []byte(rectUpdate)); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if got := drain(a.u); len(got) != 0 {
		t.Errorf("sender received %v", got)
	}
	got := drain(b.u)
	if len(got) != 1 {
		t.Fatalf("peer received %d events, want 1", len(got))
	}
	up := got[0].(protocol.DrawingUpdate)
	if up.UserID != "alice" {
		t.Errorf("UserID = %q, want the gateway identity alice", up.UserID)
	}
	if up.Element.ID != "r1" {
		t.Errorf("Element.ID = %q, want r1", up.Element.ID)
	}

	if _, ok := a.rm.GetObject("r1"); !ok {
		t.Error("element not stored")
	}
	if len(fx.pub.sent) != 1 {
		t.Errorf("published %d events, want 1", len(fx.pub.sent))
	}
}

func TestRouteRejectsForeignRoom(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "other")
	b := fx.join(t, "bob", "other")

	err := fx.router.Route(context.Background(), a, []byte(rectUpdate))
	if !errors.Is(err, errs.ErrMalformedEvent) {
		t.Fatalf("Route() error = %v, want malformed", err)
	}

	notices := drain(a.u)
	if len(notices) != 1 || notices[0].Kind() != protocol.KindError {
		t.Errorf("sender got %v, want one error notice", notices)
	}
	if got := drain(b.u); len(got) != 0 {
		t.Errorf("peer received %v after a dropped event", got)
	}
	if a.rm.ObjectCount() != 0 {
		t.Error("dropped event changed room state")
	}
}

func TestRouteMalformed(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "abc")

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", `not json`},
		{"unknown type", `{"type":"explode","roomId":"abc"}`},
		{"missing room", `{"type":"chat","message":"hi"}`},
		{"server only kind", `{"type":"room_state","roomId":"abc","elements":[]}`},
		{"tool as element", `{"type":"drawing_update","roomId":"abc","element":{"id":"x","type":"eraser"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fx.router.Route(context.Background(), a, []byte(tt.raw))
			if !errors.Is(err, errs.ErrMalformedEvent) {
				t.Errorf("Route() error = %v, want malformed", err)
			}
			drain(a.u)
		})
	}
	if a.rm.ObjectCount() != 0 {
		t.Error("malformed events changed room state")
	}
}

func TestRouteBeforeJoin(t *testing.T) {
	fx := newFixture(nil)
	s := &fakeSession{u: user.New(auth.Identity{ID: "alice"}, nil, nil), rg: fx.rg}

	err := fx.router.Route(context.Background(), s, []byte(rectUpdate))
	if !errors.Is(err, errs.ErrNotInRoom) {
		t.Errorf("Route() error = %v, want ErrNotInRoom", err)
	}
}

func TestRouteDeleteAbsentStillBroadcasts(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")

	err := fx.router.Route(context.Background(), a, []byte(`{"type":"drawing_delete","roomId":"abc","elementId":"ghost"}`))
	if err != nil {
		t.Fatalf("Route() error = %v, want nil for absent id", err)
	}
	got := drain(b.u)
	if len(got) != 1 || got[0].(protocol.DrawingDelete).ElementID != "ghost" {
		t.Errorf("peer received %v", got)
	}
}

func TestRouteObjectCap(t *testing.T) {
	limits := middleware.NewRateLimit(0, 1, 0, 0, 0)
	fx := newFixture(limits)
	a := fx.join(t, "alice", "abc")

	if err := fx.router.Route(context.Background(), a, []byte(rectUpdate)); err != nil {
		t.Fatalf("first element error = %v", err)
	}

	second := `{"type":"drawing_update","roomId":"abc","element":{"id":"r2","type":"rectangle","x":0,"y":0}}`
	if err := fx.router.Route(context.Background(), a, []byte(second)); !errors.Is(err, errs.ErrRoomAtCapacity) {
		t.Errorf("second element error = %v, want ErrRoomAtCapacity", err)
	}

	// Updating an existing id is always allowed
	if err := fx.router.Route(context.Background(), a, []byte(rectUpdate)); err != nil {
		t.Errorf("update at cap error = %v", err)
	}
}

func TestRouteCursorThrottle(t *testing.T) {
	fx := newFixture(middleware.NewRateLimit(0, 0, 0, 0, time.Hour))
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")

	move := []byte(`{"type":"cursor_move","roomId":"abc","cursor":{"x":3,"y":4,"userId":"spoofed"}}`)
	fx.router.Route(context.Background(), a, move)
	fx.router.Route(context.Background(), a, move)

	got := drain(b.u)
	if len(got) != 1 {
		t.Fatalf("peer received %d cursors, want 1", len(got))
	}
	cm := got[0].(protocol.CursorMove)
	if cm.UserID != "alice" || cm.Cursor.UserID != "alice" {
		t.Errorf("cursor attributed to %q/%q, want alice", cm.UserID, cm.Cursor.UserID)
	}
	if cm.Color == "" {
		t.Error("cursor should carry the presence color")
	}
	if c, ok := a.rm.Presence.Cursor("alice"); !ok || c.X != 3 {
		t.Errorf("stored cursor = %+v, %v", c, ok)
	}
}

func TestRouteChatIdentityOverride(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")

	raw := `{"type":"chat","roomId":"abc","userId":"mallory","name":"Mallory","message":"<b>hello</b>"}`
	if err := fx.router.Route(context.Background(), a, []byte(raw)); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	got := drain(b.u)
	if len(got) != 1 {
		t.Fatalf("peer received %d events, want 1", len(got))
	}
	chat := got[0].(protocol.Chat)
	if chat.UserID != "alice" || chat.Name != "alice-name" {
		t.Errorf("chat attributed to %q (%q), want alice", chat.UserID, chat.Name)
	}
	if chat.Message != "hello" {
		t.Errorf("Message = %q, want markup stripped", chat.Message)
	}
}

func TestRouteJoinAndLeave(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "abc")

	// Leaving a room that is not attached changes nothing
	fx.router.Route(context.Background(), a, []byte(`{"type":"leave_room","roomId":"zzz"}`))
	if a.rm == nil {
		t.Fatal("leave_room for a different room detached the session")
	}

	fx.router.Route(context.Background(), a, []byte(`{"type":"leave_room","roomId":"abc"}`))
	if a.rm != nil {
		t.Error("session still attached after leave_room")
	}
	if _, ok := fx.rg.Get("abc"); ok {
		t.Error("empty room not evicted")
	}
}

func TestApplyRemote(t *testing.T) {
	fx := newFixture(nil)
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")
	drain(a.u)

	remote, _ := protocol.Encode(protocol.DrawingUpdate{
		RoomID:  "abc",
		UserID:  "carol",
		Element: element.Element{ID: "c1", Type: element.Line, Width: 5},
	})
	if err := fx.router.ApplyRemote(context.Background(), "abc", remote); err != nil {
		t.Fatalf("ApplyRemote() error = %v", err)
	}

	for _, s := range []*fakeSession{a, b} {
		if got := drain(s.u); len(got) != 1 {
			t.Errorf("%s received %d events, want 1", s.u.UserID(), len(got))
		}
	}
	if _, ok := a.rm.GetObject("c1"); !ok {
		t.Error("remote element not stored")
	}
	if len(fx.pub.sent) != 0 {
		t.Error("remote events must not be published again")
	}

	if err := fx.router.ApplyRemote(context.Background(), "nobody-here", remote); err == nil {
		t.Error("roomId mismatch should be rejected")
	}
}

func TestRouteStoresElementVerbatim(t *testing.T) {
	fx := newFixture(middleware.DefaultRateLimit())
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")
	drain(a.u)

	el := element.Element{ID: "a&b", Type: element.Text, X: 1, Y: 2, Text: "Tom & Jerry <3", StrokeColor: "#000", UserID: "alice"}
	raw, _ := protocol.Encode(protocol.DrawingUpdate{RoomID: "abc", Element: el})
	if err := fx.router.Route(context.Background(), a, raw); err != nil {
		t.Fatalf("Route(update) error = %v", err)
	}

	stored, ok := a.rm.GetObject("a&b")
	if !ok || stored.Text != el.Text {
		t.Errorf("stored text = %q, want %q", stored.Text, el.Text)
	}
	got := drain(b.u)
	if len(got) != 1 || got[0].(protocol.DrawingUpdate).Element.Text != el.Text {
		t.Errorf("peer received %v, want text %q", got, el.Text)
	}

	del, _ := protocol.Encode(protocol.DrawingDelete{RoomID: "abc", ElementID: "a&b"})
	if err := fx.router.Route(context.Background(), a, del); err != nil {
		t.Fatalf("Route(delete) error = %v", err)
	}
	if _, ok := a.rm.GetObject("a&b"); ok {
		t.Error("element with markup characters in its id survived the delete")
	}
	got = drain(b.u)
	if len(got) != 1 || got[0].(protocol.DrawingDelete).ElementID != "a&b" {
		t.Errorf("peer received %v, want delete of a&b", got)
	}
}

func TestRouteRejectsMarkupInColor(t *testing.T) {
	fx := newFixture(middleware.DefaultRateLimit())
	a := fx.join(t, "alice", "abc")
	b := fx.join(t, "bob", "abc")
	drain(a.u)

	el := element.Element{ID: "r1", Type: element.Rectangle, Width: 4, Height: 4, FillColor: "<img src=x>"}
	raw, _ := protocol.Encode(protocol.DrawingUpdate{RoomID: "abc", Element: el})
	err := fx.router.Route(context.Background(), a, raw)
	if !errors.Is(err, errs.ErrMalformedEvent) {
		t.Fatalf("Route() error = %v, want malformed event", err)
	}
	if a.rm.ObjectCount() != 0 {
		t.Error("rejected element was stored")
	}
	if got := drain(b.u); len(got) != 0 {
		t.Errorf("peer received %v", got)
	}
	if got := drain(a.u); len(got) != 1 || got[0].Kind() != protocol.KindError {
		t.Errorf("sender received %v, want one error notice", got)
	}
}
