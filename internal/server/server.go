package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"collabboard/internal/api"
	"collabboard/internal/auth"
	"collabboard/internal/config"
	"collabboard/internal/element"
	"collabboard/internal/handlers"
	"collabboard/internal/metrics"
	"collabboard/internal/middleware"
	"collabboard/internal/relay"
	"collabboard/internal/room"
	"collabboard/internal/store"
	"collabboard/internal/user"
	transport "collabboard/internal/websocket"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	cursorInterval  = 33 * time.Millisecond
	idleTimeout     = 30 * time.Minute
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 5 * time.Second
)

// Server: one node of the whiteboard backend
type Server struct {
	cfg        *config.Config
	logger     *log.Logger
	registry   *room.Registry
	sessions   *user.SessionManager
	ipLimiter  *middleware.IPRateLimit
	router     *handlers.MessageRouter
	relay      *relay.Relay
	handler    http.Handler
	httpServer *http.Server
	closers    []func() error
}

type Option func(*options)

type options struct {
	bus       relay.Bus
	repo      store.Repository
	ipLimiter *middleware.IPRateLimit
}

// WithBus: relay over bus instead of REDIS_ADDR
func WithBus(bus relay.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithRepository: room catalogue instead of DATABASE_URL
func WithRepository(repo store.Repository) Option {
	return func(o *options) { o.repo = repo }
}

// WithIPRateLimit: overrides the per-IP connection limiter
func WithIPRateLimit(l *middleware.IPRateLimit) Option {
	return func(o *options) { o.ipLimiter = l }
}

// NewLogger: stderr logger at level ("debug", "info", "warn", "error")
func NewLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "collabboard",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// New: builds every component from cfg. Nothing runs until Start or Run.
func New(cfg *config.Config, logger *log.Logger, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}

	s := &Server{cfg: cfg, logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "collabboard")

	broadcaster := room.NewBroadcaster(logger.WithPrefix("broadcast"), m)
	s.registry = room.NewRegistry(
		room.WithBroadcaster(broadcaster),
		room.WithMaxRooms(cfg.MaxRooms),
		room.WithMaxRoomSize(cfg.MaxRoomSize),
		room.WithOnCreate(func(roomID string) {
			m.RoomCreated()
			logger.Debug("Room created", "room", roomID)
		}),
		room.WithOnEvict(func(roomID string) {
			m.RoomEvicted()
			logger.Debug("Room evicted", "room", roomID)
		}),
	)

	limits := middleware.NewRateLimit(cfg.MaxRoomSize, cfg.MaxObjects, cfg.MaxMessageSize, cfg.MaxRooms, cursorInterval)
	s.sessions = user.NewSessionManager(user.DefaultLimits())

	s.ipLimiter = o.ipLimiter
	if s.ipLimiter == nil {
		s.ipLimiter = middleware.NewIPRateLimit()
	}

	bus := o.bus
	if bus == nil && cfg.RedisAddr != "" {
		redisBus := relay.NewRedisBus(cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err := redisBus.Ping(ctx)
		cancel()
		if err != nil {
			redisBus.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		s.closers = append(s.closers, redisBus.Close)
		bus = redisBus
	}

	routerOpts := []handlers.RouterOption{
		handlers.WithLogger(logger.WithPrefix("router")),
		handlers.WithMetrics(m),
	}
	if bus != nil {
		s.relay = relay.New(bus, cfg.RedisChannel, logger.WithPrefix("relay"))
		routerOpts = append(routerOpts, handlers.WithPublisher(s.relay))
	}
	s.router = handlers.NewMessageRouter(s.registry, element.NewValidator(), limits, s.sessions, routerOpts...)

	repo := o.repo
	if repo == nil {
		if cfg.DatabaseURL != "" {
			db, err := store.OpenPostgres(cfg.DatabaseURL)
			if err != nil {
				s.Close()
				return nil, err
			}
			sqlDB, err := db.DB()
			if err == nil {
				s.closers = append(s.closers, sqlDB.Close)
			}
			repo = store.NewGormRepository(db)
		} else {
			repo = store.NewMemoryRepository()
		}
	}

	jwt := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	gateway := transport.NewGateway(
		s.registry,
		s.router,
		s.sessions,
		transport.NewAuthenticator(jwt, cfg.AuthTimeout),
		transport.WithAllowedOrigins(cfg.Domains),
		transport.WithIPRateLimit(s.ipLimiter),
		transport.WithLimits(limits),
		transport.WithLogger(logger.WithPrefix("gateway")),
		transport.WithMetrics(m),
		transport.WithBroadcaster(broadcaster),
	)

	s.handler = api.NewRouter(api.Deps{
		Rooms:     repo,
		Live:      s.registry,
		Auth:      jwt,
		WebSocket: gateway.HandleWebSocket,
		Gatherer:  reg,
		Logger:    logger.WithPrefix("api"),
	})
	return s, nil
}

// Handler: every HTTP route of the node
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry: live rooms on this node
func (s *Server) Registry() *room.Registry {
	return s.registry
}

// Start: background work (relay subscription, cleanup) until ctx is done
func (s *Server) Start(ctx context.Context) {
	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx, s.router.ApplyRemote); err != nil {
				s.logger.Error("Relay stopped", "err", err)
			}
		}()
	}
	go s.cleanup(ctx)
}

// Run: serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("WebSocket server started", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)

	// Hijacked websocket connections are not tracked by http.Server
	s.disconnectAll()
	s.Close()
	s.logger.Info("Server exiting")
	return err
}

// Close: releases redis and database handles
func (s *Server) Close() {
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			s.logger.Warn("Failed to close", "err", err)
		}
	}
	s.closers = nil
}

func (s *Server) disconnectAll() {
	for _, id := range s.registry.IDs() {
		rm, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		for _, u := range rm.GetConnections() {
			u.Close()
		}
	}
}

// cleanup: periodically drops idle rooms, sessions and IP limiters
func (s *Server) cleanup(ctx context.Context) {
	every := s.cfg.CleanupEvery
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.Cleanup(idleTimeout)
			s.sessions.Cleanup(idleTimeout)
			s.ipLimiter.Cleanup(idleTimeout)
			s.logger.Debug("Cleanup", "rooms", s.registry.Count(), "sessions", s.sessions.Count(), "ips", s.ipLimiter.Len())
		}
	}
}
