package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"collabboard/internal/auth"
	"collabboard/internal/errs"
	"collabboard/internal/handlers"
	"collabboard/internal/metrics"
	"collabboard/internal/middleware"
	"collabboard/internal/protocol"
	"collabboard/internal/room"
	"collabboard/internal/user"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Gateway: turns upgraded connections into authenticated, room scoped sessions
type Gateway struct {
	registry      *room.Registry
	router        *handlers.MessageRouter
	sessions      *user.SessionManager
	authenticator *Authenticator
	broadcaster   *room.Broadcaster
	ipLimiter     *middleware.IPRateLimit
	limits        *middleware.RateLimit
	upgrader      websocket.Upgrader
	logger        *log.Logger
	metrics       *metrics.Metrics
}

type Option func(*Gateway)

// WithAllowedOrigins: browser origins accepted by the upgrade. Empty accepts any.
func WithAllowedOrigins(origins []string) Option {
	return func(g *Gateway) {
		g.upgrader.CheckOrigin = checkOrigin(origins)
	}
}

func WithIPRateLimit(l *middleware.IPRateLimit) Option {
	return func(g *Gateway) { g.ipLimiter = l }
}

func WithLimits(l *middleware.RateLimit) Option {
	return func(g *Gateway) { g.limits = l }
}

func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithBroadcaster(b *room.Broadcaster) Option {
	return func(g *Gateway) { g.broadcaster = b }
}

func NewGateway(
	registry *room.Registry,
	router *handlers.MessageRouter,
	sessions *user.SessionManager,
	authenticator *Authenticator,
	opts ...Option,
) *Gateway {
	g := &Gateway{
		registry:      registry,
		router:        router,
		sessions:      sessions,
		authenticator: authenticator,
		upgrader:      websocket.Upgrader{CheckOrigin: checkOrigin(nil)},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	if g.broadcaster == nil {
		g.broadcaster = room.NewBroadcaster(g.logger, g.metrics)
	}
	return g
}

// checkOrigin: CORS for the upgrade. Requests without an Origin are not from browsers.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || origin == a {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket: upgrades HTTP to WebSocket, authenticates and runs the session
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)
	if g.ipLimiter != nil && !g.ipLimiter.Allow(clientIP) {
		g.logger.Warn("Rate limit exceeded", "ip", clientIP)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade connection", "ip", clientIP, "err", err)
		return
	}

	identity, err := g.authenticator.Authenticate(r, conn)
	if err != nil {
		reason := auth.CloseReason(err)
		g.metrics.AuthFailed(reason)
		g.logger.Warn("Authentication failed", "ip", clientIP, "reason", reason, "err", err)
		reject(conn, err)
		return
	}

	session := g.sessions.Acquire(identity.ID)
	defer g.sessions.Release(identity.ID)

	u := user.New(identity, session, conn)
	s := newSession(g, u)
	defer u.Close()
	defer s.Detach() // disconnect leaves immediately, no grace period

	go u.WritePump()

	g.unicast(u, protocol.Authenticated{
		UserID: identity.ID,
		Name:   identity.Name,
		Email:  identity.Email,
	})
	g.logger.Info("Connected", "user", identity.ID, "conn", u.ID, "ip", clientIP)

	if roomID := r.URL.Query().Get("room"); roomID != "" {
		if err := s.AttachToRoom(roomID); err != nil {
			g.logger.Warn("Failed to join room", "room", roomID, "user", identity.ID, "err", err)
			g.unicast(u, protocol.Error{RoomID: roomID, Message: err.Error()})
		}
	}

	g.run(r.Context(), s)
	g.logger.Info("Disconnected", "user", identity.ID, "conn", u.ID)
}

// run: message loop for one connection, returns when the connection dies
func (g *Gateway) run(ctx context.Context, s *Session) {
	u := s.User()
	u.KeepAlive()

	for {
		_, msg, err := u.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("Reading message", "conn", u.ID, "err", err)
			}
			return
		}

		if !g.limits.ValidateMessageSize(len(msg)) {
			g.logger.Warn("Message too large", "user", u.UserID(), "bytes", len(msg))
			g.unicast(u, protocol.Error{Message: errs.ErrTooLarge.Error()})
			continue
		}

		if err := g.router.Route(ctx, s, msg); err != nil {
			level := log.DebugLevel
			if !errors.Is(err, errs.ErrRateLimited) {
				level = log.InfoLevel
			}
			g.logger.Log(level, "Event not applied", "user", u.UserID(), "err", err)
		}
	}
}

func (g *Gateway) unicast(u *user.User, ev protocol.Event) {
	msg, err := protocol.Encode(ev)
	if err != nil {
		g.logger.Error("Failed to encode", "kind", ev.Kind(), "err", err)
		return
	}
	g.broadcaster.Unicast(u, msg)
}

// announce: presence notice to everyone in rm except u
func (g *Gateway) announce(rm *room.Room, u *user.User, ev protocol.Presence) {
	msg, err := protocol.Encode(ev)
	if err != nil {
		g.logger.Error("Failed to encode", "kind", ev.Kind(), "err", err)
		return
	}
	g.broadcaster.Broadcast(rm, msg, u.ID)
}
