package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"collabboard/internal/auth"
	"collabboard/internal/errs"
	"collabboard/internal/room"
	"collabboard/internal/store"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LiveRooms: the in-memory registry as seen by the REST side
type LiveRooms interface {
	Get(roomID string) (*room.Room, bool)
	Count() int
}

// Deps: everything the HTTP surface needs
type Deps struct {
	Rooms     store.Repository
	Live      LiveRooms
	Auth      auth.Authenticator
	WebSocket http.HandlerFunc
	Gatherer  prometheus.Gatherer
	Logger    *log.Logger
}

type handler struct {
	Deps
}

type identityKey struct{}

// NewRouter: websocket endpoint, room catalogue, health and metrics
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{Deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	if deps.WebSocket != nil {
		r.Get("/ws", deps.WebSocket)
		r.Get("/", deps.WebSocket) // clients that connect to the bare host
	}
	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/", h.createRoom)
		r.Get("/", h.listRooms)
		r.Get("/{slug}", h.getRoom)
	})
	return r
}

// requireAuth: bearer token on every catalogue request
func (h *handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, message("No token provided"))
			return
		}

		id, err := h.Auth.Authenticate(header)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, errs.ErrTokenExpired) {
				msg = "Token expired"
			}
			writeJSON(w, http.StatusUnauthorized, message(msg))
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey{}).(auth.Identity)
	return id
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	rooms := 0
	if h.Live != nil {
		rooms = h.Live.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": rooms})
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (h *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, message("Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, message(errs.ErrRoomNameMissing.Error()))
		return
	}

	admin := identityFrom(r.Context())
	created, err := h.Rooms.Create(r.Context(), store.NewRoom(req.Name, admin.ID))
	if err != nil {
		if errors.Is(err, errs.ErrSlugTaken) {
			writeJSON(w, http.StatusConflict, message(err.Error()))
			return
		}
		h.Logger.Error("Failed to create room", "admin", admin.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, message("Failed to create room"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"roomId": created.ID, "slug": created.Slug})
}

func (h *handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Rooms.ListByAdmin(r.Context(), identityFrom(r.Context()).ID)
	if err != nil {
		h.Logger.Error("Failed to list rooms", "err", err)
		writeJSON(w, http.StatusInternalServerError, message("Failed to list rooms"))
		return
	}
	if rooms == nil {
		rooms = []store.Room{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type roomResponse struct {
	store.Room
	Participants int `json:"participants"`
	Elements     int `json:"elements"`
}

func (h *handler) getRoom(w http.ResponseWriter, r *http.Request) {
	found, err := h.Rooms.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, errs.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, message(err.Error()))
			return
		}
		h.Logger.Error("Failed to find room", "err", err)
		writeJSON(w, http.StatusInternalServerError, message("Failed to find room"))
		return
	}

	resp := roomResponse{Room: *found}
	if h.Live != nil {
		if live, ok := h.Live.Get(found.ID); ok {
			resp.Participants = live.ConnectionCount()
			resp.Elements = live.ObjectCount()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
