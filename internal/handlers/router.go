package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collabboard/internal/element"
	"collabboard/internal/errs"
	"collabboard/internal/metrics"
	"collabboard/internal/middleware"
	"collabboard/internal/protocol"
	"collabboard/internal/room"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "collabboard/handlers"

// MessageRouter applies inbound events to room state and fans them out
type MessageRouter struct {
	objectHandler *ObjectHandler
	cursorHandler *CursorHandler
	chatHandler   *ChatHandler
	userHandler   *UserHandler

	rooms     RoomLookup
	publisher Publisher
	logger    *log.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type RouterOption func(*MessageRouter)

// WithPublisher: applied events are also sent to other nodes
func WithPublisher(p Publisher) RouterOption {
	return func(mr *MessageRouter) { mr.publisher = p }
}

func WithLogger(l *log.Logger) RouterOption {
	return func(mr *MessageRouter) { mr.logger = l }
}

func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(mr *MessageRouter) { mr.metrics = m }
}

func NewMessageRouter(
	rooms RoomLookup,
	validator *element.Validator,
	limits *middleware.RateLimit,
	sessions SessionProvider,
	opts ...RouterOption,
) *MessageRouter {
	mr := &MessageRouter{
		rooms:  rooms,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(mr)
	}

	mr.objectHandler = NewObjectHandler(validator, limits, mr.logger, mr.metrics)
	mr.cursorHandler = NewCursorHandler(sessions, limits)
	mr.chatHandler = NewChatHandler()
	mr.userHandler = NewUserHandler()
	return mr
}

// Route: decode one message from s and process it. Malformed events are answered
// with an error notice to the sender only; the connection stays open either way.
func (mr *MessageRouter) Route(ctx context.Context, s Session, raw []byte) error {
	start := time.Now()

	ev, err := protocol.Decode(raw)
	if err != nil {
		mr.metrics.Event("unknown", "rejected", time.Since(start))
		mr.notify(s, "", err)
		return err
	}

	ctx, span := mr.tracer.Start(ctx, "route."+string(ev.Kind()),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("room.id", ev.Room()),
			attribute.String("user.id", s.User().UserID()),
			attribute.String("conn.id", s.User().ID),
		),
	)
	defer span.End()

	err = mr.dispatch(ctx, s, ev)

	status := "ok"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		status = "dropped"
		if !errors.Is(err, errs.ErrRateLimited) {
			status = "rejected"
			mr.notify(s, ev.Room(), err)
		}
	}
	mr.metrics.Event(string(ev.Kind()), status, time.Since(start))
	return err
}

func (mr *MessageRouter) dispatch(ctx context.Context, s Session, ev protocol.Event) error {
	switch ev := ev.(type) {
	case protocol.JoinRoom:
		return mr.userHandler.HandleJoin(s, ev)
	case protocol.LeaveRoom:
		return mr.userHandler.HandleLeave(s, ev)
	}

	if !protocol.FromClient(ev.Kind()) {
		return &protocol.MalformedEventError{Reason: fmt.Sprintf("%s is not accepted from clients", ev.Kind())}
	}

	rm := s.Room()
	if rm == nil {
		return errs.ErrNotInRoom
	}
	if ev.Room() != rm.ID {
		return &protocol.MalformedEventError{Reason: fmt.Sprintf("roomId %q is not the attached room", ev.Room())}
	}

	u := s.User()
	var (
		msg []byte
		err error
	)
	switch ev := ev.(type) {
	case protocol.DrawingUpdate:
		msg, err = mr.objectHandler.HandleUpdate(rm, u, ev)
	case protocol.DrawingDelete:
		msg, err = mr.objectHandler.HandleDelete(rm, u, ev)
	case protocol.CursorMove:
		msg, err = mr.cursorHandler.Handle(rm, u, ev)
	case protocol.Chat:
		msg, err = mr.chatHandler.Handle(rm, u, ev)
	}
	if err != nil || msg == nil {
		return err
	}

	mr.publish(ctx, rm.ID, msg)
	return nil
}

func (mr *MessageRouter) publish(ctx context.Context, roomID string, msg []byte) {
	if mr.publisher == nil {
		return
	}
	if err := mr.publisher.Publish(ctx, roomID, msg); err != nil {
		if mr.logger != nil {
			mr.logger.Warn("Relay publish failed", "room", roomID, "err", err)
		}
		return
	}
	mr.metrics.Relayed("out")
}

// notify: error notice to the sender, best effort
func (mr *MessageRouter) notify(s Session, roomID string, cause error) {
	msg, err := protocol.Encode(protocol.Error{RoomID: roomID, Message: cause.Error()})
	if err != nil {
		return
	}
	if err := s.User().Send(msg); err != nil && mr.logger != nil {
		mr.logger.Debug("Error notice not delivered", "conn", s.User().ID, "err", err)
	}
}

// ApplyRemote: applies an event that another node already accepted. It is fanned out to
// every local participant and never published again.
func (mr *MessageRouter) ApplyRemote(ctx context.Context, roomID string, msg []byte) error {
	ev, err := protocol.Decode(msg)
	if err != nil {
		return err
	}
	if ev.Room() != roomID {
		return &protocol.MalformedEventError{Reason: "relay envelope and event disagree on roomId"}
	}

	rm, ok := mr.rooms.Get(roomID)
	if !ok {
		return nil
	}
	mr.metrics.Relayed("in")

	_, span := mr.tracer.Start(ctx, "relay."+string(ev.Kind()),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	switch ev := ev.(type) {
	case protocol.DrawingUpdate:
		return rm.Commit("", msg, func(els *room.Elements) error {
			els.Upsert(ev.Element, ev.UserID, time.Now())
			return nil
		})
	case protocol.DrawingDelete:
		return rm.Commit("", msg, func(els *room.Elements) error {
			els.Delete(ev.ElementID)
			return nil
		})
	case protocol.CursorMove:
		if ev.Cursor != nil {
			rm.Presence.SetCursor(roomID, ev.UserID, *ev.Cursor)
		}
		return rm.Commit("", msg, nil)
	case protocol.Chat:
		return rm.Commit("", msg, nil)
	default:
		return &protocol.MalformedEventError{Reason: fmt.Sprintf("%s cannot be relayed", ev.Kind())}
	}
}
